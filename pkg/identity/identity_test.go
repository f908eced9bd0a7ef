package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("realm roles only feed the primary role set", func(t *testing.T) {
		var raw RawClaims
		err := json.Unmarshal([]byte(`{
			"sub": "user-1",
			"email": "alice@example.com",
			"name": "Alice",
			"phone_number": "+61400000000",
			"realm_access": {"roles": ["signal_user", "admin"]},
			"resource_access": {"account": {"roles": ["manage-account"]}},
			"groups": ["/staff"]
		}`), &raw)
		require.NoError(t, err)

		id, err := Normalize(raw, "access-tok", "refresh-tok")
		require.NoError(t, err)

		require.Equal(t, "user-1", id.Subject)
		require.Equal(t, "alice@example.com", id.Email)
		require.Equal(t, "Alice", id.DisplayName)
		require.Equal(t, "+61400000000", id.PhoneNumber)
		require.Equal(t, "access-tok", id.AccessToken)
		require.Equal(t, "refresh-tok", id.RefreshToken)
		require.ElementsMatch(t, []string{"signal_user", "admin"}, id.Roles)
		require.Equal(t, []string{"/staff"}, id.Groups)

		// Resource roles stay informational and never leak into Roles.
		require.Equal(t, []string{"manage-account"}, id.ResourceRoles["account"])
		require.NotContains(t, id.Roles, "manage-account")
	})

	t.Run("missing role and group claims default to empty sets", func(t *testing.T) {
		var raw RawClaims
		require.NoError(t, json.Unmarshal([]byte(`{"sub": "user-2"}`), &raw))

		id, err := Normalize(raw, "tok", "")
		require.NoError(t, err)

		require.NotNil(t, id.Roles)
		require.Empty(t, id.Roles)
		require.NotNil(t, id.Groups)
		require.Empty(t, id.Groups)
		require.Nil(t, id.ResourceRoles)
	})

	t.Run("duplicate roles are collapsed", func(t *testing.T) {
		raw := RawClaims{Subject: "user-3"}
		raw.RealmAccess.Roles = []string{"signal_user", "signal_user", ""}

		id, err := Normalize(raw, "tok", "")
		require.NoError(t, err)
		require.Equal(t, []string{"signal_user"}, id.Roles)
	})

	t.Run("missing subject fails closed", func(t *testing.T) {
		_, err := Normalize(RawClaims{}, "tok", "")
		require.Error(t, err)
	})

	t.Run("missing access token fails closed", func(t *testing.T) {
		_, err := Normalize(RawClaims{Subject: "user-4"}, "", "")
		require.Error(t, err)
	})
}

func TestIdentityMembership(t *testing.T) {
	t.Parallel()

	id := &Identity{
		Subject:     "user-1",
		AccessToken: "tok",
		Roles:       []string{"signal_user"},
		Groups:      []string{"/staff"},
	}

	require.True(t, id.HasRole("signal_user"))
	require.False(t, id.HasRole("Signal_User"), "role matching is case-sensitive")
	require.True(t, id.HasGroup("/staff"))
	require.False(t, id.HasGroup("staff"))
}
