package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/corvidchat/authkit/pkg/identity"
)

// userInfo fetches the provider's userinfo document with the given access
// token, normalizes it into an Identity, and enforces the configured
// required roles and groups.
func (m *Manager) userInfo(ctx context.Context, accessToken, refreshToken string) (*identity.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.UserInfoEndpoint, nil)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid userinfo endpoint", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "userinfo request", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: userinfo rejected the access token", ErrInvalidToken)
	case resp.StatusCode != http.StatusOK:
		return nil, &NetworkError{
			Op:  "userinfo request",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, &NetworkError{Op: "userinfo read", Err: err}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrInvalidUserInfo)
	}

	var raw identity.RawClaims
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserInfo, err)
	}

	id, err := identity.Normalize(raw, accessToken, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserInfo, err)
	}

	if sub := tokenSubject(accessToken); sub != "" && sub != id.Subject {
		m.logger.Warn("userinfo subject differs from token subject",
			"token_subject", sub, "userinfo_subject", id.Subject)
	}

	if len(m.cfg.RequiredRoles) > 0 && !holdsAny(id.Roles, m.cfg.RequiredRoles) {
		return nil, &RoleAccessDeniedError{
			Claim:    "roles",
			Required: m.cfg.RequiredRoles,
			Held:     id.Roles,
		}
	}
	if len(m.cfg.RequiredGroups) > 0 && !holdsAny(id.Groups, m.cfg.RequiredGroups) {
		return nil, &RoleAccessDeniedError{
			Claim:    "groups",
			Required: m.cfg.RequiredGroups,
			Held:     id.Groups,
		}
	}

	return id, nil
}

// maxUserInfoBytes caps how much of a userinfo response is read. Real
// documents are a few kilobytes.
const maxUserInfoBytes = 1 << 20

func holdsAny(held, required []string) bool {
	for _, want := range required {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
