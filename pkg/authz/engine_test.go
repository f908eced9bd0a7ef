package authz

import (
	"testing"

	"github.com/corvidchat/authkit/pkg/identity"
	"github.com/stretchr/testify/require"
)

// staticLoader serves a fixed identity, or nil for the signed-out state.
type staticLoader struct {
	id *identity.Identity
}

func (l *staticLoader) Load() *identity.Identity { return l.id }

func testFeatures() FeatureMap {
	return FeatureMap{
		"signal_user": {"messaging", "calls", "groups"},
		"admin":       {"admin_panel", "messaging"},
	}
}

func userWith(roles, groups []string) *staticLoader {
	return &staticLoader{id: &identity.Identity{
		Subject:     "user-1",
		AccessToken: "tok",
		Roles:       roles,
		Groups:      groups,
	}}
}

func TestRoleChecks(t *testing.T) {
	t.Parallel()

	engine := NewEngine(userWith([]string{"signal_user"}, nil), testFeatures())

	require.True(t, engine.HasRole("signal_user"))
	require.False(t, engine.HasRole("admin"))
	require.False(t, engine.HasRole("SIGNAL_USER"), "matching is case-sensitive")

	require.True(t, engine.HasAnyRole("admin", "signal_user"))
	require.False(t, engine.HasAnyRole("admin", "moderator"))
	require.False(t, engine.HasAnyRole(), "empty input is false")

	require.True(t, engine.HasAllRoles("signal_user"))
	require.False(t, engine.HasAllRoles("signal_user", "admin"))
	require.True(t, engine.HasAllRoles(), "empty input is vacuously true")
}

func TestAllImpliesAnyForNonEmptyInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(userWith([]string{"signal_user", "admin"}, nil), testFeatures())

	for _, roles := range [][]string{
		{"signal_user"},
		{"signal_user", "admin"},
		{"moderator"},
	} {
		if engine.HasAllRoles(roles...) {
			require.True(t, engine.HasAnyRole(roles...), "HasAllRoles implies HasAnyRole for %v", roles)
		}
	}
}

func TestGroupChecks(t *testing.T) {
	t.Parallel()

	engine := NewEngine(userWith(nil, []string{"/staff", "/sydney"}), testFeatures())

	require.True(t, engine.HasGroup("/staff"))
	require.False(t, engine.HasGroup("/admins"))

	require.True(t, engine.HasAnyGroup("/admins", "/sydney"))
	require.False(t, engine.HasAnyGroup())

	require.True(t, engine.HasAllGroups("/staff", "/sydney"))
	require.False(t, engine.HasAllGroups("/staff", "/admins"))
	require.True(t, engine.HasAllGroups())
}

func TestEnabledFeatures(t *testing.T) {
	t.Parallel()

	t.Run("single role yields its mapped features", func(t *testing.T) {
		engine := NewEngine(userWith([]string{"signal_user"}, nil), testFeatures())
		require.ElementsMatch(t, []string{"messaging", "calls", "groups"}, engine.EnabledFeatures())
	})

	t.Run("union across roles is deduplicated", func(t *testing.T) {
		engine := NewEngine(userWith([]string{"signal_user", "admin"}, nil), testFeatures())
		require.ElementsMatch(t,
			[]string{"messaging", "calls", "groups", "admin_panel"},
			engine.EnabledFeatures(),
		)
	})

	t.Run("unmapped roles contribute nothing", func(t *testing.T) {
		engine := NewEngine(userWith([]string{"auditor"}, nil), testFeatures())
		require.Empty(t, engine.EnabledFeatures())
	})
}

func TestIsFeatureEnabled(t *testing.T) {
	t.Parallel()

	admin := NewEngine(userWith([]string{"admin"}, nil), testFeatures())
	user := NewEngine(userWith([]string{"signal_user"}, nil), testFeatures())

	require.True(t, admin.IsFeatureEnabled("admin_panel"))
	require.False(t, user.IsFeatureEnabled("admin_panel"))
	require.True(t, user.IsFeatureEnabled("messaging"))
}

func TestAbsentIdentityBehavesAsEmpty(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&staticLoader{}, testFeatures())

	require.False(t, engine.HasRole("signal_user"))
	require.False(t, engine.HasGroup("/staff"))
	require.False(t, engine.HasAnyRole("signal_user"))
	require.True(t, engine.HasAllRoles(), "vacuous truth holds even when signed out")
	require.False(t, engine.HasAllRoles("signal_user"))
	require.Empty(t, engine.EnabledFeatures())
	require.False(t, engine.IsFeatureEnabled("messaging"))
}

// mutableLoader flips identities between calls to prove the engine
// re-reads rather than caching.
type mutableLoader struct {
	id *identity.Identity
}

func (l *mutableLoader) Load() *identity.Identity { return l.id }

func TestEngineObservesIdentityChanges(t *testing.T) {
	t.Parallel()

	loader := &mutableLoader{}
	engine := NewEngine(loader, testFeatures())

	require.False(t, engine.HasRole("signal_user"))

	loader.id = &identity.Identity{Subject: "u", AccessToken: "t", Roles: []string{"signal_user"}}
	require.True(t, engine.HasRole("signal_user"))

	loader.id = nil
	require.False(t, engine.HasRole("signal_user"))
}
