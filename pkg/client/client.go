package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrForbidden is a 403: the token is fine but the role is not enough.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is a 401 that survived the refresh, or a failed login.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	out := &APIError{Status: resp.StatusCode}

	var body struct {
		Error     string `json:"error"`
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		out.Code = body.Code
		out.Message = body.Error
		out.RequestID = body.RequestID
	}

	return out
}

// Config configures New.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	// LoginURL is where Redirector sends the user when the session ends.
	LoginURL string
	Scope    Scope
	Store    TokenStore
	// Redirector receives LoginURL on logout and LoginURL?expired=true when the session expires.
	Redirector Redirector
	// Transport is the underlying round tripper; nil means http.DefaultTransport.
	Transport      http.RoundTripper
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}

// Client talks to the API on behalf of one session.
type Client struct {
	baseURL    string
	loginURL   string
	session    *Session
	coord      *Coordinator
	redirector Redirector
	http       *http.Client // with Transport
	plain      *http.Client // without token handling, for login and logout
	log        *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client.New: empty base url")
	}
	if cfg.Store == nil {
		return nil, errors.New("client.New: nil store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Redirector == nil {
		cfg.Redirector = RedirectFunc(func(string) {})
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	plain := &http.Client{Transport: base, Timeout: cfg.Timeout}
	session := NewSession(cfg.Store, cfg.Scope)

	coord := NewCoordinator(session, CoordinatorOptions{
		BaseURL:    baseURL,
		LoginURL:   cfg.LoginURL,
		Redirector: cfg.Redirector,
		HTTPClient: &http.Client{Transport: base},
		Timeout:    cfg.RefreshTimeout,
		Logger:     cfg.Logger,
	})

	return &Client{
		baseURL:    baseURL,
		loginURL:   cfg.LoginURL,
		session:    session,
		coord:      coord,
		redirector: cfg.Redirector,
		http: &http.Client{
			Transport: &Transport{Base: base, Session: session, Coordinator: coord},
			Timeout:   cfg.Timeout,
		},
		plain: plain,
		log:   cfg.Logger,
	}, nil
}

// Session returns the session the client works with.
func (c *Client) Session() *Session { return c.session }

// Coordinator returns the refresh coordinator shared by the client's requests.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// HTTPClient returns an *http.Client that authorizes and refreshes transparently.
func (c *Client) HTTPClient() *http.Client { return c.http }

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login signs in a student (or any role) and stores the session.
func (c *Client) Login(ctx context.Context, identifier, password string) (*User, error) {
	return c.login(ctx, "/auth/login", identifier, password)
}

// AdminLogin signs in through the admin endpoint; non-admins get ErrForbidden.
func (c *Client) AdminLogin(ctx context.Context, identifier, password string) (*User, error) {
	return c.login(ctx, "/auth/admin/login", identifier, password)
}

func (c *Client) login(ctx context.Context, path, identifier, password string) (*User, error) {
	const op = "client.Login"

	var out tokenResponse
	if err := c.send(ctx, c.plain, http.MethodPost, path, loginRequest{identifier, password}, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%s: empty token in response", op)
	}

	err := c.coord.startSession(func() error {
		return c.session.save(out.Token, out.RefreshToken, out.User)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Info("login_ok", slog.String("path", path))

	return out.User, nil
}

type verifyResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// Verify asks the server who the current token belongs to.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var out verifyResponse
	if err := c.Get(ctx, "/auth/verify", &out); err != nil {
		return nil, fmt.Errorf("client.Verify: %w", err)
	}
	return &out.User, nil
}

// Logout revokes the refresh token on the server (best effort), clears the
// session and redirects to the login page.
func (c *Client) Logout(ctx context.Context) error {
	const op = "client.Logout"

	if refresh, err := c.session.RefreshToken(); err == nil && refresh != "" {
		if err := c.send(ctx, c.plain, http.MethodPost, "/auth/logout", refreshRequest{refresh}, nil); err != nil {
			c.log.Warn("logout_revoke_failed", slog.String("err", err.Error()))
		}
	}

	c.coord.markLoggedOut()
	if err := c.session.Clear(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.redirector.Redirect(c.loginURL)

	return nil
}

// Do sends req through the authorizing transport. Responses are returned as they are.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get sends GET path and decodes the JSON answer into out. Non-2xx answers are *APIError.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.send(ctx, c.http, http.MethodGet, path, nil, out)
}

// Send sends a JSON body with the given method and decodes the answer into out.
func (c *Client) Send(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, c.http, method, path, in, out)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
