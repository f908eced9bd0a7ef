package authflow

import (
	"net/url"
	"sync"

	"github.com/corvidchat/authkit/pkg/idx"
)

// callbackResult is what a delivered redirect resolves a pending flow
// with. Exactly one result is ever produced per flow.
type callbackResult struct {
	code             string
	errorCode        string
	errorDescription string
	aborted          bool
}

// pendingFlow is the single outstanding authorization-code exchange
// awaiting its external callback. Consumption is one-shot: the first
// matching delivery wins and every later delivery is rejected.
type pendingFlow struct {
	id       string // ULID, for log correlation
	state    string // OAuth2 state parameter the redirect must echo
	verifier string // PKCE code verifier for the token exchange

	mu       sync.Mutex
	consumed bool
	result   chan callbackResult
}

func newPendingFlow(state, verifier string) *pendingFlow {
	return &pendingFlow{
		id:       idx.New().String(),
		state:    state,
		verifier: verifier,
		result:   make(chan callbackResult, 1),
	}
}

// deliver feeds a redirect URL to the flow. It reports false for URLs that
// do not parse, carry neither a code nor an error, echo the wrong state,
// or arrive after the flow already resolved.
func (f *pendingFlow) deliver(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	query := u.Query()
	code := query.Get("code")
	errorCode := query.Get("error")
	if code == "" && errorCode == "" {
		return false
	}

	// A state mismatch means this redirect belongs to some other attempt;
	// it must not consume this flow.
	if query.Get("state") != f.state {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed {
		return false
	}
	f.consumed = true

	f.result <- callbackResult{
		code:             code,
		errorCode:        errorCode,
		errorDescription: query.Get("error_description"),
	}
	return true
}

// abort resolves the flow without a callback, releasing any waiter. Used
// on sign-out while a flow is still outstanding.
func (f *pendingFlow) abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed {
		return
	}
	f.consumed = true
	f.result <- callbackResult{aborted: true}
}
