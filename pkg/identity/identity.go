// Package identity defines the normalized authenticated-user record and the
// translation from identity-provider claims into it.
package identity

import "fmt"

// Identity is the normalized record of the authenticated user. Subject and
// AccessToken are always present on a valid Identity; Roles and Groups may
// be empty but are never nil.
type Identity struct {
	// Subject is the provider's stable unique identifier for the user.
	Subject string

	// Optional profile fields.
	Email       string
	DisplayName string
	PhoneNumber string

	AccessToken  string
	RefreshToken string

	// Roles holds the realm-level roles. Membership checks use only this
	// set.
	Roles []string

	// Groups holds the provider group memberships.
	Groups []string

	// ResourceRoles preserves per-resource role grants for informational
	// purposes. They are never merged into Roles and are not persisted.
	ResourceRoles map[string][]string
}

// HasRole reports whether the identity holds the realm role exactly
// (case-sensitive).
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasGroup reports whether the identity belongs to the group exactly
// (case-sensitive).
func (id *Identity) HasGroup(group string) bool {
	for _, g := range id.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// RawClaims is the provider-shaped userinfo payload for a Keycloak realm.
// It is consumed immediately to build an Identity and never persisted.
type RawClaims struct {
	Subject     string `json:"sub"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`

	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access,omitempty"`

	Groups []string `json:"groups,omitempty"`
}

// Normalize builds an Identity from provider claims and the tokens obtained
// in the exchange. Roles are taken only from the realm-level role list;
// resource-scoped roles are retained under ResourceRoles but never merged.
// Missing role and group claims default to empty sets; a missing subject is
// an error.
func Normalize(raw RawClaims, accessToken, refreshToken string) (*Identity, error) {
	if raw.Subject == "" {
		return nil, fmt.Errorf("identity: claims missing subject")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("identity: missing access token")
	}

	id := &Identity{
		Subject:      raw.Subject,
		Email:        raw.Email,
		DisplayName:  raw.Name,
		PhoneNumber:  raw.PhoneNumber,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Roles:        dedupe(raw.RealmAccess.Roles),
		Groups:       dedupe(raw.Groups),
	}

	if len(raw.ResourceAccess) > 0 {
		id.ResourceRoles = make(map[string][]string, len(raw.ResourceAccess))
		for resource, access := range raw.ResourceAccess {
			id.ResourceRoles[resource] = dedupe(access.Roles)
		}
	}

	return id, nil
}

// dedupe returns values with duplicates and empty strings removed,
// preserving first-seen order. The result is never nil.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
