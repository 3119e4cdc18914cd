package git

import (
	"fmt"
	"strings"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
)

// Typed git errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type NetworkError struct {
	Op, URL string
	Err     error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s network error for %s: %v", e.Op, e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// classify wraps remote-facing failures into typed variants when the message
// (or the captured git output) allows it.
func classify(op, url string, err error, output []byte) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error() + " " + string(output))
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") ||
		strings.Contains(l, "could not read username") || strings.Contains(l, "permission denied"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist") ||
		strings.Contains(l, "not found"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "could not resolve host") || strings.Contains(l, "connection refused") ||
		strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") ||
		strings.Contains(l, "remote hung up") || strings.Contains(l, "no route to host"):
		return &NetworkError{Op: op, URL: url, Err: err}
	default:
		return err
	}
}

// mirrorFailed builds the fatal error returned by Ensure.
func mirrorFailed(url string, err error, output []byte) error {
	return shiperrors.MirrorError(url, classify("clone", url, err, output)).
		WithContext("output", string(output))
}

// refreshFailed builds the tick-level error returned by Refresh.
func refreshFailed(url string, err error, output []byte) error {
	return shiperrors.RefreshError(classify("fetch", url, err, output)).
		WithContext("url", url).
		WithContext("output", string(output))
}

// tagsFailed builds the tick-level error returned by Tags.
func tagsFailed(err error, output []byte) error {
	return shiperrors.TagListError(err).WithContext("output", string(output))
}
