package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/corvidchat/authkit/pkg/callback"
	"github.com/corvidchat/authkit/pkg/cryptox"
	"github.com/corvidchat/authkit/pkg/httpx"
	"github.com/corvidchat/authkit/pkg/identity"
	"github.com/corvidchat/authkit/pkg/session"
)

// cancellationErrorCode is the provider error code delivered on the
// redirect when the user backs out of the hosted login page.
const cancellationErrorCode = "access_denied"

// Presenter shows the authorization request to the user, typically by
// opening the URL in a browser or webview. Returning an error aborts the
// flow; completion is reported separately through the redirect callback.
type Presenter interface {
	Present(ctx context.Context, authURL string) error
}

// Config carries the static provider and policy settings for a Manager.
type Config struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoint      string

	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// RequiredRoles and RequiredGroups gate authentication: when
	// non-empty, an identity holding none of the listed values is
	// rejected with RoleAccessDeniedError. This implementation applies
	// the strict policy: the identity is not persisted on denial.
	RequiredRoles  []string
	RequiredGroups []string
}

// flowState tracks the manager's position in its lifecycle.
type flowState int

const (
	stateIdle flowState = iota
	stateAwaitingCallback
	stateResolving
	stateRefreshing
	stateSignedOut
)

func (s flowState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitingCallback:
		return "awaiting_callback"
	case stateResolving:
		return "resolving"
	case stateRefreshing:
		return "refreshing"
	case stateSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Manager drives the authorization-code flow against the identity
// provider and owns the single in-flight authorization attempt. It is safe
// for concurrent use, though the design expects one logical flow at a
// time.
type Manager struct {
	cfg       Config
	presenter Presenter
	router    *callback.Router
	store     *session.Store
	client    *http.Client
	logger    *slog.Logger

	mu        sync.Mutex
	state     flowState
	pending   *pendingFlow
	token     *oauth2.Token
	signedOut bool
}

// NewManager wires a manager to its collaborators. presenter may be nil,
// in which case Authenticate fails with a ConfigError; httpClient nil
// selects the paced httpx default.
func NewManager(
	cfg Config,
	presenter Presenter,
	router *callback.Router,
	store *session.Store,
	httpClient *http.Client,
	logger *slog.Logger,
) *Manager {
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.DefaultProviderLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		presenter: presenter,
		router:    router,
		store:     store,
		client:    httpClient,
		logger:    logger,
	}
}

// Restore seeds the manager's in-memory token state from the session
// store so Refresh works across process restarts. It returns the restored
// identity, or nil when no complete identity is persisted.
func (m *Manager) Restore() *identity.Identity {
	id := m.store.Load()
	if id == nil {
		return nil
	}

	m.mu.Lock()
	m.token = &oauth2.Token{
		AccessToken:  id.AccessToken,
		RefreshToken: id.RefreshToken,
		Expiry:       tokenExpiry(id.AccessToken),
	}
	m.mu.Unlock()

	m.logger.Info("session restored", "subject", id.Subject, "roles", len(id.Roles))
	return id
}

// Valid reports whether the manager holds an access token that has not
// expired. Tokens without a readable expiry count as valid; the provider
// remains the authority.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil || m.token.AccessToken == "" {
		return false
	}
	return m.token.Expiry.IsZero() || time.Now().Before(m.token.Expiry)
}

// Authenticate runs the full authorization-code flow: it presents the
// authorization request externally, waits for the routed redirect,
// exchanges the code for tokens, fetches and validates user claims, and
// persists the resulting identity. The manager unregisters from the
// callback router on every exit path.
func (m *Manager) Authenticate(ctx context.Context) (*identity.Identity, error) {
	oauthCfg, err := m.oauthConfig()
	if err != nil {
		return nil, err
	}
	if m.presenter == nil {
		return nil, &ConfigError{Reason: "no presentation surface configured"}
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("authflow: failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	flow := newPendingFlow(state, verifier)

	m.mu.Lock()
	if m.signedOut {
		m.mu.Unlock()
		return nil, ErrSignedOut
	}
	if m.pending != nil {
		m.mu.Unlock()
		return nil, &ConfigError{Reason: "authorization flow already in progress"}
	}
	m.pending = flow
	m.state = stateAwaitingCallback
	m.mu.Unlock()

	m.router.Register(m)
	defer func() {
		// Exactly once per flow, on success, failure, and cancellation
		// alike: a stale registration would misroute the next callback.
		m.router.Unregister(m)

		m.mu.Lock()
		if m.pending == flow {
			m.pending = nil
		}
		if m.state != stateSignedOut {
			m.state = stateIdle
		}
		m.mu.Unlock()
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	m.logger.Info("presenting authorization request", "flow", flow.id)

	if err := m.presenter.Present(ctx, authURL); err != nil {
		return nil, &NetworkError{Op: "present authorization request", Err: err}
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return nil, &NetworkError{Op: "await authorization callback", Err: ctx.Err()}
	case result = <-flow.result:
	}

	switch {
	case result.aborted:
		return nil, ErrSignedOut
	case result.errorCode == cancellationErrorCode:
		m.logger.Info("authorization cancelled by user", "flow", flow.id)
		return nil, ErrUserCancelled
	case result.errorCode != "":
		return nil, &NetworkError{
			Op:  "authorization",
			Err: fmt.Errorf("%s: %s", result.errorCode, result.errorDescription),
		}
	}

	m.setState(stateResolving)

	token, err := oauthCfg.Exchange(ctx, result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &NetworkError{Op: "token exchange", Err: err}
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: exchange returned no access token", ErrInvalidToken)
	}

	id, err := m.userInfo(ctx, token.AccessToken, token.RefreshToken)
	if err != nil {
		return nil, err
	}

	// The write happens only after the role check passed; a persisted
	// identity has always been validated.
	m.store.Store(id)

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.logger.Info("authentication complete", "flow", flow.id, "subject", id.Subject)
	return id, nil
}

// Refresh exchanges the stored refresh token for fresh tokens, re-fetches
// user claims (re-validating required roles), and re-persists the
// identity.
func (m *Manager) Refresh(ctx context.Context) (*identity.Identity, error) {
	oauthCfg, err := m.oauthConfig()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.signedOut {
		m.mu.Unlock()
		return nil, ErrSignedOut
	}
	current := m.token
	m.state = stateRefreshing
	m.mu.Unlock()

	defer m.setState(stateIdle)

	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no prior authorization state", ErrInvalidToken)
	}

	// Force the token source to refresh by presenting the current access
	// token as already expired.
	seed := &oauth2.Token{
		AccessToken:  current.AccessToken,
		RefreshToken: current.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	token, err := oauthCfg.TokenSource(ctx, seed).Token()
	if err != nil {
		if retrieveErr, ok := err.(*oauth2.RetrieveError); ok && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: refresh token rejected", ErrInvalidToken)
		}
		return nil, &NetworkError{Op: "token refresh", Err: err}
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh returned no access token", ErrInvalidToken)
	}

	id, err := m.userInfo(ctx, token.AccessToken, token.RefreshToken)
	if err != nil {
		return nil, err
	}

	m.store.Store(id)

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.logger.Info("session refreshed", "subject", id.Subject)
	return id, nil
}

// SignOut clears the in-memory authorization state and the session store.
// It is local-only (no end-session round trip to the provider), always
// succeeds, and leaves the manager terminal.
func (m *Manager) SignOut() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.token = nil
	m.signedOut = true
	m.state = stateSignedOut
	m.mu.Unlock()

	if pending != nil {
		pending.abort()
	}

	m.router.Unregister(m)
	m.store.Clear()
	m.logger.Info("signed out")
}

// HandleCallback feeds an external redirect URL to the pending flow. It
// returns false when no flow is awaiting a callback or the URL was not
// consumed (wrong state, malformed, or already delivered).
func (m *Manager) HandleCallback(rawURL string) bool {
	m.mu.Lock()
	flow := m.pending
	m.mu.Unlock()

	if flow == nil {
		return false
	}
	return flow.deliver(rawURL)
}

// oauthConfig validates the endpoint and redirect URLs and builds the
// x/oauth2 configuration.
func (m *Manager) oauthConfig() (*oauth2.Config, error) {
	for _, endpoint := range []struct {
		name  string
		value string
	}{
		{"authorization endpoint", m.cfg.AuthorizationEndpoint},
		{"token endpoint", m.cfg.TokenEndpoint},
		{"userinfo endpoint", m.cfg.UserInfoEndpoint},
		{"redirect URL", m.cfg.RedirectURL},
	} {
		u, err := url.Parse(endpoint.value)
		if err != nil {
			return nil, &ConfigError{Reason: "invalid " + endpoint.name, Err: err}
		}
		if u.Scheme == "" {
			return nil, &ConfigError{Reason: endpoint.name + " missing URL scheme"}
		}
	}

	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  m.cfg.RedirectURL,
		Scopes:       m.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.cfg.AuthorizationEndpoint,
			TokenURL: m.cfg.TokenEndpoint,
		},
	}, nil
}

func (m *Manager) setState(s flowState) {
	m.mu.Lock()
	if m.state != stateSignedOut {
		m.state = s
	}
	m.mu.Unlock()
}
