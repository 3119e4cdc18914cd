package config

import "strings"

// AuthType enumerates supported authentication methods (stringly for YAML compatibility)
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents authentication configuration for the go-git backend.
type AuthConfig struct {
	Type     AuthType `yaml:"type" toml:"type"` // ssh|token|basic|none
	Username string   `yaml:"username,omitempty" toml:"username"`
	Password string   `yaml:"password,omitempty" toml:"password"`
	Token    string   `yaml:"token,omitempty" toml:"token"`
	KeyPath  string   `yaml:"key_path,omitempty" toml:"key_path"`
}

// IsZero reports whether no auth method specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// NormalizeAuthType maps user input to a known AuthType, or "" when unknown.
func NormalizeAuthType(raw string) AuthType {
	switch AuthType(strings.ToLower(strings.TrimSpace(raw))) {
	case AuthTypeNone:
		return AuthTypeNone
	case AuthTypeSSH:
		return AuthTypeSSH
	case AuthTypeToken:
		return AuthTypeToken
	case AuthTypeBasic:
		return AuthTypeBasic
	default:
		return ""
	}
}

// IsValid reports whether the auth type is supported.
func (t AuthType) IsValid() bool { return NormalizeAuthType(string(t)) == t && t != "" }
