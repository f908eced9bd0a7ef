// Package authz answers role, group, and feature questions about the
// currently persisted identity.
package authz

import (
	"sort"

	"github.com/corvidchat/authkit/pkg/identity"
)

// FeatureMap maps a realm role to the application features it unlocks.
// It is read-only after construction.
type FeatureMap map[string][]string

// IdentityLoader supplies the current identity. The engine re-reads on
// every query so external changes (refresh, sign-out) are observed
// immediately; session.Store satisfies this.
type IdentityLoader interface {
	Load() *identity.Identity
}

// Engine evaluates membership and feature queries. All methods are pure
// reads: an absent identity behaves as one with no roles, groups, or
// features rather than as an error.
type Engine struct {
	loader   IdentityLoader
	features FeatureMap
}

// NewEngine builds an engine over loader with the given role-to-feature
// mapping. features may be nil.
func NewEngine(loader IdentityLoader, features FeatureMap) *Engine {
	return &Engine{loader: loader, features: features}
}

// HasRole reports whether the current identity holds role (exact,
// case-sensitive match).
func (e *Engine) HasRole(role string) bool {
	id := e.loader.Load()
	return id != nil && id.HasRole(role)
}

// HasGroup reports whether the current identity belongs to group.
func (e *Engine) HasGroup(group string) bool {
	id := e.loader.Load()
	return id != nil && id.HasGroup(group)
}

// HasAnyRole reports whether the identity holds at least one of roles.
// An empty input yields false.
func (e *Engine) HasAnyRole(roles ...string) bool {
	id := e.loader.Load()
	if id == nil {
		return false
	}
	for _, role := range roles {
		if id.HasRole(role) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the identity holds every one of roles.
// An empty input is vacuously true.
func (e *Engine) HasAllRoles(roles ...string) bool {
	id := e.loader.Load()
	for _, role := range roles {
		if id == nil || !id.HasRole(role) {
			return false
		}
	}
	return true
}

// HasAnyGroup reports whether the identity belongs to at least one of
// groups. An empty input yields false.
func (e *Engine) HasAnyGroup(groups ...string) bool {
	id := e.loader.Load()
	if id == nil {
		return false
	}
	for _, group := range groups {
		if id.HasGroup(group) {
			return true
		}
	}
	return false
}

// HasAllGroups reports whether the identity belongs to every one of groups.
// An empty input is vacuously true.
func (e *Engine) HasAllGroups(groups ...string) bool {
	id := e.loader.Load()
	for _, group := range groups {
		if id == nil || !id.HasGroup(group) {
			return false
		}
	}
	return true
}

// EnabledFeatures returns the union of the features mapped to each of the
// identity's roles, deduplicated and sorted. Roles without a mapping entry
// contribute nothing.
func (e *Engine) EnabledFeatures() []string {
	out := []string{}

	id := e.loader.Load()
	if id == nil {
		return out
	}

	seen := make(map[string]struct{})
	for _, role := range id.Roles {
		for _, feature := range e.features[role] {
			if _, ok := seen[feature]; ok {
				continue
			}
			seen[feature] = struct{}{}
			out = append(out, feature)
		}
	}

	sort.Strings(out)
	return out
}

// IsFeatureEnabled reports whether feature is unlocked by any of the
// identity's roles.
func (e *Engine) IsFeatureEnabled(feature string) bool {
	id := e.loader.Load()
	if id == nil {
		return false
	}
	for _, role := range id.Roles {
		for _, f := range e.features[role] {
			if f == feature {
				return true
			}
		}
	}
	return false
}
