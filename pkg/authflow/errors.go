package authflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel outcomes of an authorization flow. Callers classify failures
// with errors.Is / errors.As; the manager never swallows one silently.
var (
	// ErrInvalidToken reports a missing or unusable token: the exchange or
	// refresh produced no access token, the provider rejected the one we
	// hold, or refresh was attempted with no prior authorization state.
	// Recovery requires a fresh Authenticate.
	ErrInvalidToken = errors.New("authflow: invalid or missing token")

	// ErrUserCancelled reports that the user dismissed the external
	// authorization UI. This is an expected outcome, not a fault.
	ErrUserCancelled = errors.New("authflow: user cancelled authorization")

	// ErrInvalidUserInfo reports a userinfo response that was empty or did
	// not match the expected claims schema. This is a provider contract
	// violation and is not retried automatically.
	ErrInvalidUserInfo = errors.New("authflow: invalid userinfo response")

	// ErrSignedOut reports an operation on a manager that has been signed
	// out; the manager is terminal and a new one must be constructed.
	ErrSignedOut = errors.New("authflow: manager is signed out")
)

// ConfigError reports malformed static configuration (endpoint or redirect
// URLs, missing presentation surface). It is fatal to the attempt and not
// retried.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authflow: configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authflow: configuration error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NetworkError reports a transport or provider failure during op. The
// whole flow is safe to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("authflow: %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RoleAccessDeniedError reports a successful authentication whose identity
// satisfies none of the configured required roles or groups. It is
// distinct from network and configuration failures: the credentials were
// fine, the authorization was not.
type RoleAccessDeniedError struct {
	// Claim is the claim family that failed the check: "roles" or
	// "groups".
	Claim string

	// Required lists the values of which at least one was required.
	Required []string

	// Held lists the values the identity actually holds.
	Held []string
}

func (e *RoleAccessDeniedError) Error() string {
	return fmt.Sprintf(
		"authflow: access denied: user holds none of the required %s [%s]",
		e.Claim, strings.Join(e.Required, ", "),
	)
}
