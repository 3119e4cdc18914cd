// Package auth turns git.auth settings into go-git transport credentials.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/tagshipper/internal/config"
)

// AuthError reports an authentication setup failure.
type AuthError struct {
	Type    config.AuthType
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s auth: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s auth: %s", e.Type, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// CreateAuth returns the go-git AuthMethod for authCfg. A nil config or type
// none yields a nil method, which go-git treats as anonymous access.
func CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.IsZero() {
		return nil, nil
	}

	switch authCfg.Type {
	case config.AuthTypeSSH:
		keyPath := authCfg.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		if _, err := os.Stat(keyPath); err != nil {
			return nil, &AuthError{Type: authCfg.Type, Message: "SSH key file does not exist: " + keyPath, Cause: err}
		}
		user := authCfg.Username
		if user == "" {
			user = "git"
		}
		publicKeys, err := ssh.NewPublicKeysFromFile(user, keyPath, authCfg.Password)
		if err != nil {
			return nil, &AuthError{Type: authCfg.Type, Message: "failed to load SSH key from " + keyPath, Cause: err}
		}
		return publicKeys, nil

	case config.AuthTypeToken:
		if authCfg.Token == "" {
			return nil, &AuthError{Type: authCfg.Type, Message: "token authentication requires a token"}
		}
		return &http.BasicAuth{Username: "token", Password: authCfg.Token}, nil

	case config.AuthTypeBasic:
		if authCfg.Username == "" || authCfg.Password == "" {
			return nil, &AuthError{Type: authCfg.Type, Message: "basic authentication requires username and password"}
		}
		return &http.BasicAuth{Username: authCfg.Username, Password: authCfg.Password}, nil

	default:
		return nil, &AuthError{Type: authCfg.Type, Message: "unsupported authentication type"}
	}
}
