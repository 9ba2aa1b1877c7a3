package auth

import "fmt"

// Kind classifies an authentication failure.
type Kind string

const (
	// NonceUnavailable means the backend refused to issue a nonce (for
	// example, the wallet is not registered as an admin).
	NonceUnavailable Kind = "nonce_unavailable"
	// UserRejected means the signer refused to produce a signature.
	UserRejected Kind = "user_rejected"
	// LoginFailed means the backend rejected the signed login.
	LoginFailed Kind = "login_failed"
)

// AuthError is a failure of the admin auth handshake.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("auth %s", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }
