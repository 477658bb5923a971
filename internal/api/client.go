package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/session"
)

// ErrUnauthorized is returned when the backend rejects the session token.
// By the time a caller sees it, the session store has already been cleared
// and invalidation callbacks have fired; callers must not assume the operator
// is still logged in.
var ErrUnauthorized = errors.New("session expired or unauthorized")

// Error is a backend or transport failure carrying the backend's message when
// present. Err holds the underlying transport cause, if any.
type Error struct {
	StatusCode int
	Message    string
	Fallback   string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Fallback, e.Err)
	}
	return e.Fallback
}

// Unwrap exposes the transport cause for errors.Is/As chains
func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is the backend's standard response wrapper. Routes differ in whether
// the payload sits at data or data.data; the capability mappers unwrap accordingly.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Unwrap decodes the envelope's data payload into out
func (e *Envelope) Unwrap(out interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("api: response envelope has no data")
	}
	return json.Unmarshal(e.Data, out)
}

// UnwrapNested decodes a doubly-wrapped payload (data.data) into out.
// Falls back to the outer payload for backend revisions that flattened the shape.
func (e *Envelope) UnwrapNested(out interface{}) error {
	var inner Envelope
	if err := json.Unmarshal(e.Data, &inner); err == nil && len(inner.Data) > 0 {
		return json.Unmarshal(inner.Data, out)
	}
	return e.Unwrap(out)
}

// Client wraps outbound calls to the prediction backend: fixed base URL, JSON
// content type, 30 second timeout, bearer token attachment from the session
// store, and centralized 401 handling.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions session.Store
}

// NewClient creates an API client against the given base URL
func NewClient(baseURL string, timeout time.Duration, sessions session.Store) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
	}
}

// Post sends a JSON POST to the given path and returns the response envelope
func (c *Client) Post(ctx context.Context, path string, body interface{}, fallback string) (*Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("api: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("api: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, fallback)
}

// Get sends a GET to the given path with optional query parameters and returns
// the response envelope
func (c *Client) Get(ctx context.Context, path string, query url.Values, fallback string) (*Envelope, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("api: failed to create request: %w", err)
	}

	return c.do(req, fallback)
}

// do executes a request with bearer auth and centralized response inspection.
// On 401 the session is invalidated before the error is returned, so control
// may not return normally to page-level handlers.
func (c *Client) do(req *http.Request, fallback string) (*Envelope, error) {
	if sess, ok := c.sessions.Current(); ok && sess.Valid() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("API request %s %s failed: %v", req.Method, req.URL.Path, err)
		return nil, &Error{Fallback: fallback, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Printf("API returned 401 for %s %s, clearing session", req.Method, req.URL.Path)
		if err := c.sessions.Invalidate(); err != nil {
			log.Printf("Failed to clear session: %v", err)
		}
		return nil, ErrUnauthorized
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Fallback: fallback}
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: env.Message, Fallback: fallback}
	}

	if decodeErr != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Fallback: fallback}
	}

	return &env, nil
}
