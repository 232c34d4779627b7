// Package client is the storefront's session agent: a Go HTTP client that
// holds the access token in memory, lets the cookie jar carry the refresh
// token, and keeps a signed-out cart and favorite list that is handed to
// the server at sign-in.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/model"
)

// Reconciliation is the server's report on merging the signed-out state.
type Reconciliation struct {
	Applied   bool   `json:"applied"`
	CartLines int    `json:"cart_lines"`
	Favorites int    `json:"favorites"`
	Error     string `json:"error,omitempty"`
}

// Agent talks to the session service on behalf of one user.  Its methods
// are safe for concurrent use but run one at a time, so a token refresh is
// never raced by another call.
type Agent struct {
	base  string
	http  *http.Client
	store Store
	log   zerolog.Logger

	mu     sync.Mutex
	access string
	state  State
}

// Option customises an Agent.
type Option func(*Agent)

// WithHTTPClient replaces the default client.  A client without a cookie
// jar gets one, since the refresh token lives there.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) { a.http = c }
}

// WithLogger sets the agent's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Agent) { a.log = l }
}

// New creates an agent for the service at baseURL and restores persisted
// state from store.  A restored identity has no access token yet; the first
// authenticated call refreshes one through the cookie jar.
func New(baseURL string, store Store, opts ...Option) (*Agent, error) {
	a := &Agent{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: 10 * time.Second},
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		a.http.Jar = jar
	}
	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load client state: %w", err)
	}
	a.state = st
	return a, nil
}

// Identity returns the signed-in account, or nil.
func (a *Agent) Identity() *Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity == nil {
		return nil
	}
	id := *a.state.Identity
	return &id
}

// SignedIn reports whether the agent believes a session exists.
func (a *Agent) SignedIn() bool { return a.Identity() != nil }

// Anonymous returns the signed-out cart and favorites still held locally.
func (a *Agent) Anonymous() model.AnonymousState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.state).anonymous()
}

type credentialsBody struct {
	Identity  string               `json:"identity"`
	Password  string               `json:"password"`
	Anonymous model.AnonymousState `json:"anonymous"`
}

type sessionBody struct {
	Account        Identity       `json:"account"`
	AccessToken    string         `json:"access_token"`
	Reconciliation Reconciliation `json:"reconciliation"`
}

// Register creates an account and signs in, handing over the local cart
// and favorites.
func (a *Agent) Register(ctx context.Context, identity, password string) (Reconciliation, error) {
	return a.signIn(ctx, "/v1/auth/register", identity, password)
}

// Login signs in, handing over the local cart and favorites.  They are
// dropped locally only when the server reports the merge applied; otherwise
// they stay for Sync.
func (a *Agent) Login(ctx context.Context, identity, password string) (Reconciliation, error) {
	return a.signIn(ctx, "/v1/auth/login", identity, password)
}

func (a *Agent) signIn(ctx context.Context, path, identity, password string) (Reconciliation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out sessionBody
	body := credentialsBody{Identity: identity, Password: password, Anonymous: a.state.anonymous()}
	if err := a.send(ctx, http.MethodPost, path, body, &out); err != nil {
		return Reconciliation{}, err
	}
	a.access = out.AccessToken
	acct := out.Account
	a.state.Identity = &acct
	if out.Reconciliation.Applied {
		a.state.Cart, a.state.Favorites = nil, nil
	} else if out.Reconciliation.Error != "" {
		a.log.Warn().Str("error", out.Reconciliation.Error).Msg("sign-in merge not applied, keeping local state")
	}
	return out.Reconciliation, a.save()
}

// Logout ends the session on the server and always clears local state,
// including the signed-out cart and favorites.
func (a *Agent) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.send(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("logout call failed, clearing local session anyway")
	}
	if rerr := a.reset(); rerr != nil {
		return rerr
	}
	return err
}

// Me returns the account the server sees behind the current session.
func (a *Agent) Me(ctx context.Context) (Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var id Identity
	err := a.authed(ctx, http.MethodGet, "/v1/me", nil, &id)
	return id, err
}

// Sync resubmits local cart and favorites after a sign-in merge that did
// not apply.  It is a no-op when signed out or when nothing is held.
func (a *Agent) Sync(ctx context.Context) (Reconciliation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	anon := a.state.anonymous()
	if a.state.Identity == nil || anon.IsEmpty() {
		return Reconciliation{}, nil
	}
	var out Reconciliation
	if err := a.authed(ctx, http.MethodPost, "/v1/sync", anon, &out); err != nil {
		return Reconciliation{}, err
	}
	a.state.Cart, a.state.Favorites = nil, nil
	return out, a.save()
}

// CreateAdmin registers another admin account.  The caller must be signed
// in as an admin.
func (a *Agent) CreateAdmin(ctx context.Context, identity, password string) (Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out struct {
		Account Identity `json:"account"`
	}
	err := a.authed(ctx, http.MethodPost, "/v1/admin/accounts",
		credentialsBody{Identity: identity, Password: password}, &out)
	return out.Account, err
}

// authed performs a call that needs the access token.  A 401 triggers one
// refresh and one retry; if either is rejected the session is over and all
// local state is cleared.
func (a *Agent) authed(ctx context.Context, method, path string, in, out interface{}) error {
	err := a.send(ctx, method, path, in, out)
	if !isUnauthorized(err) || !retryable(path) {
		return err
	}
	if err := a.refresh(ctx); err != nil {
		if isUnauthorized(err) {
			return a.endSession()
		}
		return err
	}
	err = a.send(ctx, method, path, in, out)
	if isUnauthorized(err) {
		return a.endSession()
	}
	return err
}

func (a *Agent) refresh(ctx context.Context) error {
	var out struct {
		Account     Identity `json:"account"`
		AccessToken string   `json:"access_token"`
	}
	if err := a.send(ctx, http.MethodPost, "/v1/auth/refresh", nil, &out); err != nil {
		return err
	}
	a.access = out.AccessToken
	acct := out.Account
	a.state.Identity = &acct
	return a.save()
}

func (a *Agent) endSession() error {
	a.log.Info().Msg("session ended, clearing local state")
	if err := a.reset(); err != nil {
		return err
	}
	return ErrSessionEnded
}

// reset forgets the access token, the refresh cookie and every piece of
// persisted state.
func (a *Agent) reset() error {
	a.access = ""
	a.state = State{}
	if jar, err := cookiejar.New(nil); err == nil {
		a.http.Jar = jar
	}
	return a.store.Clear()
}

func (a *Agent) save() error { return a.store.Save(a.state) }

// send performs one request.  Non-2xx responses become *APIError.
func (a *Agent) send(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.access != "" {
		req.Header.Set("Authorization", "Bearer "+a.access)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Code: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// retryable excludes the endpoints whose 401 is itself the answer.
func retryable(path string) bool {
	switch path {
	case "/v1/auth/login", "/v1/auth/register", "/v1/auth/refresh":
		return false
	}
	return true
}
