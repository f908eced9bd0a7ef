// Package authflow implements the client side of the OAuth2
// authorization-code flow with PKCE against an OpenID-Connect provider.
//
// A Manager owns the single in-flight authorization attempt: it presents
// the authorization URL through a Presenter, registers itself with a
// callback.Router to receive the external redirect, exchanges the returned
// code for tokens, normalizes the userinfo claims into an
// identity.Identity, and persists the result through a session.Store.
// Failures are classified into a small error taxonomy (ConfigError,
// NetworkError, ErrInvalidToken, ErrUserCancelled, ErrInvalidUserInfo,
// RoleAccessDeniedError) so callers can decide between retrying, asking
// the user to sign in again, and giving up.
package authflow
