package keycloak_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/corvidchat/authkit/internal/app"
	"github.com/corvidchat/authkit/pkg/identity"
)

/*
 * End-to-end test against a real Keycloak container. It exercises the
 * refresh path: a refresh token obtained out of band is seeded into the
 * session store, then Manager.Refresh performs the token refresh and
 * userinfo fetch against the live provider.
 *
 * Gated behind AUTHKIT_E2E_KEYCLOAK=1 because it pulls and boots a
 * Keycloak image.
 */

const (
	keycloakImage = "quay.io/keycloak/keycloak:24.0"
	adminUsername = "admin"
	adminPassword = "admin"
)

func setupKeycloakContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        keycloakImage,
		ExposedPorts: []string{"8080/tcp"},
		Cmd:          []string{"start-dev"},
		Env: map[string]string{
			"KEYCLOAK_ADMIN":          adminUsername,
			"KEYCLOAK_ADMIN_PASSWORD": adminPassword,
		},
		WaitingFor: wait.ForHTTP("/realms/master").
			WithPort("8080/tcp").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// passwordGrant obtains tokens for the bootstrap admin through the
// direct-access grant, standing in for a completed browser flow.
func passwordGrant(t *testing.T, baseURL string) (accessToken, refreshToken string) {
	t.Helper()

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {"admin-cli"},
		"username":   {adminUsername},
		"password":   {adminPassword},
		"scope":      {"openid"},
	}

	resp, err := http.Post(
		baseURL+"/realms/master/protocol/openid-connect/token",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)

	return body.AccessToken, body.RefreshToken
}

func TestRefreshAgainstKeycloak(t *testing.T) {
	if os.Getenv("AUTHKIT_E2E_KEYCLOAK") == "" {
		t.Skip("set AUTHKIT_E2E_KEYCLOAK=1 to run the Keycloak end-to-end test")
	}

	baseURL := setupKeycloakContainer(t)
	accessToken, refreshToken := passwordGrant(t, baseURL)

	cfg := app.Config{
		ProviderURL:  baseURL,
		Realm:        "master",
		ClientID:     "admin-cli",
		Scopes:       []string{"openid"},
		RedirectURL:  "corvid://oauth/callback",
		StoreBackend: "memory",
		Env:          "test",
		LogLevel:     "info",
		LogFormat:    "text",
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	// Seed the session as if a prior sign-in completed here.
	application.Store.Store(&identity.Identity{
		Subject:      "seed",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
	require.NotNil(t, application.Manager.Restore())
	require.True(t, application.Manager.Valid())

	id, err := application.Manager.Refresh(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id.Subject)
	require.NotEqual(t, "seed", id.Subject, "refresh should replace the seeded subject with the provider's")
	require.NotNil(t, id.Roles)

	// The refreshed identity reached the store with the new tokens.
	stored := application.Store.Load()
	require.NotNil(t, stored)
	require.Equal(t, id.Subject, stored.Subject)
	require.NotEqual(t, accessToken, stored.AccessToken)
	require.True(t, application.Manager.Valid())
}
