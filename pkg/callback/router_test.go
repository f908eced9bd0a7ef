package callback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingHandler counts deliveries and answers with a fixed result.
type recordingHandler struct {
	accept bool
	urls   []string
}

func (h *recordingHandler) HandleCallback(rawURL string) bool {
	h.urls = append(h.urls, rawURL)
	return h.accept
}

func TestRouteWithoutRegistration(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	require.False(t, router.Route("corvid://oauth/callback?code=abc"))
}

func TestRouteForwardsToRegisteredHandler(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	handler := &recordingHandler{accept: true}
	router.Register(handler)

	require.True(t, router.Route("corvid://oauth/callback?code=abc"))
	require.Equal(t, []string{"corvid://oauth/callback?code=abc"}, handler.urls)
}

func TestRouteReturnsHandlerResult(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	handler := &recordingHandler{accept: false}
	router.Register(handler)

	require.False(t, router.Route("corvid://oauth/callback?code=abc"))
	require.Len(t, handler.urls, 1)
}

func TestSecondRegistrationSupersedesFirst(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	first := &recordingHandler{accept: true}
	second := &recordingHandler{accept: true}

	router.Register(first)
	router.Register(second)

	require.True(t, router.Route("corvid://oauth/callback?code=abc"))
	require.Empty(t, first.urls, "superseded handler receives no callback")
	require.Len(t, second.urls, 1)
}

func TestUnregisterOnlyClearsOwnRegistration(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	first := &recordingHandler{accept: true}
	second := &recordingHandler{accept: true}

	router.Register(first)
	router.Register(second)

	// The superseded handler unregistering must not evict its successor.
	router.Unregister(first)
	require.True(t, router.Route("corvid://oauth/callback?code=abc"))
	require.Len(t, second.urls, 1)

	router.Unregister(second)
	require.False(t, router.Route("corvid://oauth/callback?code=abc"))
}
