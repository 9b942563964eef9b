package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultRefreshTimeout bounds one refresh exchange.
const DefaultRefreshTimeout = 10 * time.Second

var (
	// ErrSessionExpired means the session is over and the user has to log in again.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoRefreshToken: nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// State of a Coordinator.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Redirector sends the user somewhere, typically the login page.
type Redirector interface {
	Redirect(url string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(url string)

func (f RedirectFunc) Redirect(url string) { f(url) }

type refreshResult struct {
	token string
	err   error
	// done hands the turn to the next waiter.
	done func()
}

func (r refreshResult) pass() {
	if r.done != nil {
		r.done()
	}
}

func noop() {}

// Coordinator runs at most one token refresh at a time for a Session.
// Callers arriving while a refresh is in flight wait for its outcome. After
// a successful refresh they get their turn in arrival order, right after the
// caller that ran the refresh: each one receives the token only once the
// previous one called its done.
//
// Every logout and login starts a new generation. A refresh that finishes
// in a later generation than it started in is discarded: its tokens are not
// stored and it does not change the state.
type Coordinator struct {
	session    *Session
	httpc      *http.Client
	refreshURL string
	loginURL   string
	redirector Redirector
	timeout    time.Duration
	log        *slog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	waiters []chan refreshResult
}

// CoordinatorOptions configure NewCoordinator.
type CoordinatorOptions struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	// LoginURL is where the user is sent when the session ends.
	LoginURL   string
	Redirector Redirector
	// HTTPClient performs the refresh call. It must not be wrapped by Transport.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewCoordinator(session *Session, opts CoordinatorOptions) *Coordinator {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRefreshTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Redirector == nil {
		opts.Redirector = RedirectFunc(func(string) {})
	}

	return &Coordinator{
		session:    session,
		httpc:      opts.HTTPClient,
		refreshURL: opts.BaseURL + "/auth/refresh-token",
		loginURL:   opts.LoginURL,
		redirector: opts.Redirector,
		timeout:    opts.Timeout,
		log:        opts.Logger,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset starts a new generation after a login and puts the coordinator back
// to Idle. Callers waiting on an older refresh get the freshly stored token.
func (c *Coordinator) Reset() {
	_ = c.startSession(nil)
}

// startSession runs save and the generation switch under one lock, so an
// older refresh cannot overwrite what save stored.
func (c *Coordinator) startSession(save func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if save != nil {
		if err := save(); err != nil {
			c.state = StateLoggedOut
			c.release(refreshResult{err: ErrSessionExpired})
			return err
		}
	}
	c.state = StateIdle
	res := c.currentLocked()
	if res.err != nil {
		c.release(res)
	} else {
		c.chain(res)()
	}

	return nil
}

// markLoggedOut is used by a voluntary logout. An in-flight refresh is
// abandoned and its waiters are rejected.
func (c *Coordinator) markLoggedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.state = StateLoggedOut
	c.release(refreshResult{err: ErrSessionExpired})
}

// Refresh returns a fresh access token. stale is the token the caller was
// rejected with; if the stored token already differs, it is returned without
// a network call.
func (c *Coordinator) Refresh(ctx context.Context, stale string) (string, error) {
	token, done, err := c.refreshTurn(ctx, stale)
	done()
	return token, err
}

// refreshTurn is Refresh for callers that replay a request: done must be
// called once the replay is sent, it lets the next waiter go. done is never
// nil and may be called more than once.
func (c *Coordinator) refreshTurn(ctx context.Context, stale string) (string, func(), error) {
	c.mu.Lock()
	switch c.state {
	case StateLoggedOut:
		c.mu.Unlock()
		return "", noop, ErrSessionExpired

	case StateRefreshing:
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.pass, res.err
		case <-ctx.Done():
			// keep the chain moving for the waiters behind
			go func() { (<-ch).pass() }()
			return "", noop, ctx.Err()
		}
	}

	current, err := c.session.AccessToken()
	if err == nil && current != "" && current != stale {
		c.mu.Unlock()
		return current, noop, nil
	}

	c.state = StateRefreshing
	gen := c.gen
	c.mu.Unlock()

	out, err := c.exchange(ctx)
	if err != nil {
		return "", noop, c.fail(gen, err)
	}

	c.mu.Lock()
	if c.gen != gen {
		res := c.currentLocked()
		c.mu.Unlock()
		c.log.Debug("session_refresh_discarded")
		return res.token, noop, res.err
	}
	if err := c.storeLocked(out); err != nil {
		c.mu.Unlock()
		return "", noop, c.fail(gen, err)
	}
	c.state = StateIdle
	done := c.chain(refreshResult{token: out.Token})
	c.mu.Unlock()

	c.log.Debug("session_refreshed")

	return out.Token, done, nil
}

// pending is the number of queued waiters.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// release hands res to every waiter at once. c.mu must be held.
func (c *Coordinator) release(res refreshResult) {
	// channels are buffered, sends never block
	for _, ch := range c.waiters {
		ch <- res
	}
	c.waiters = nil
}

// chain detaches the waiters and returns the func that gives res to the
// first of them. Every waiter's done gives it to the next one. c.mu must be
// held; the returned func may run without it.
func (c *Coordinator) chain(res refreshResult) func() {
	next := noop
	for i := len(c.waiters) - 1; i >= 0; i-- {
		ch, after := c.waiters[i], next
		var once sync.Once
		next = func() {
			once.Do(func() {
				r := res
				r.done = after
				ch <- r
			})
		}
	}
	c.waiters = nil

	return next
}

// currentLocked is the outcome for a caller of the current generation.
func (c *Coordinator) currentLocked() refreshResult {
	if c.state == StateLoggedOut {
		return refreshResult{err: ErrSessionExpired}
	}

	token, err := c.session.AccessToken()
	if err != nil || token == "" {
		return refreshResult{err: ErrSessionExpired}
	}
	return refreshResult{token: token}
}

func (c *Coordinator) storeLocked(out *tokenResponse) error {
	if err := c.session.SetAccessToken(out.Token); err != nil {
		return err
	}
	if out.RefreshToken != "" {
		return c.session.SetRefreshToken(out.RefreshToken)
	}
	return nil
}

// fail ends the session after a refresh of generation gen failed: the store
// is cleared, the user is redirected once and the waiters are rejected.
// Nothing is touched when a logout or login already moved past gen.
func (c *Coordinator) fail(gen uint64, cause error) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrSessionExpired
	}

	c.log.Warn("session_refresh_failed", slog.String("err", cause.Error()))

	if err := c.session.Clear(); err != nil {
		c.log.Error("session_clear_failed", slog.String("err", err.Error()))
	}
	c.gen++
	c.state = StateLoggedOut
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	c.redirector.Redirect(c.loginURL + "?expired=true")

	for _, ch := range waiters {
		ch <- refreshResult{err: ErrSessionExpired}
	}

	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// exchange calls the refresh endpoint. It outlives the caller's cancellation
// and is bounded by the refresh timeout only. The tokens are not stored here.
func (c *Coordinator) exchange(ctx context.Context) (*tokenResponse, error) {
	const op = "client.coordinator.exchange"

	refresh, err := c.session.RefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if refresh == "" {
		return nil, ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s: %w", op, decodeAPIError(resp))
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%s: empty token in response", op)
	}

	return &out, nil
}
