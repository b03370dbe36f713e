// Package client talks to the Wayfarer API over HTTP. Client implements the
// session.AuthClient and session.ProfileAPI contracts and reports the auth
// changes it causes on a local event stream.
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
	"sync"
	"time"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/session"
)

// eventBuffer is the per-subscriber channel capacity.
const eventBuffer = 16

// Client is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	current *domain.Session
	subs    map[int]chan session.Event
	nextSub int
}

var (
	_ session.AuthClient = (*Client)(nil)
	_ session.ProfileAPI = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides time.Now for the refresh loop.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client for the API rooted at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: http.DefaultClient,
		log:  slog.Default(),
		now:  time.Now,
		subs: map[int]chan session.Event{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx answer from the API. It unwraps to the domain
// sentinel matching its status, so callers can use errors.Is.
type APIError struct {
	Status   int
	Code     string
	Message  string
	Redirect string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case http.StatusForbidden:
		return domain.ErrAuthorization
	case http.StatusTooManyRequests:
		return domain.ErrAuthentication
	case http.StatusUnauthorized:
		if e.Code == "not_authenticated" {
			return domain.ErrNotAuthenticated
		}
		return domain.ErrAuthentication
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Redirect string `json:"redirect"`
	} `json:"error"`
}

// do sends one request. body is JSON-encoded when non-nil and the data member
// of a success envelope is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: "http_error", Message: resp.Status}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Redirect = env.Error.Redirect
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Subscribe implements session.AuthClient. The stream carries only changes
// made through this Client.
func (c *Client) Subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event, eventBuffer)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// emitLocked fans ev out without blocking; a full subscriber misses the event.
func (c *Client) emitLocked(ev session.Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Warn("auth event dropped", "type", string(ev.Type))
		}
	}
}

// track records sess as the current session and emits typ.
func (c *Client) track(typ session.EventType, sess *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess == nil {
		c.current = nil
		c.emitLocked(session.Event{Type: typ})
		return
	}
	cp := *sess
	c.current = &cp
	ev := cp
	c.emitLocked(session.Event{Type: typ, Session: &ev})
}

// Resume adopts a session obtained elsewhere, such as one recovered from a
// token cache, so AutoRefresh keeps it fresh. No event is emitted.
func (c *Client) Resume(sess domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &sess
}

// Current returns a copy of the last session issued through this Client.
func (c *Client) Current() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// isAuthFailure reports whether err means the token itself was rejected.
func isAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
