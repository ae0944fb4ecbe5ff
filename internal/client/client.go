package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lockerhub/internal/models"
)

// ErrSessionExpired is returned when a request needed a session but the
// refresh token was rejected. The held session is cleared.
var ErrSessionExpired = errors.New("session expired, log in again")

// ErrNoSession is returned by calls that need a session when none is held.
var ErrNoSession = errors.New("not logged in")

// APIError is a non-2xx response decoded from the server error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by an APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithSession(pair models.SessionPair) Option {
	return func(c *Client) { c.session = pair }
}

// OnSessionChange registers a hook called after login, refresh and logout
// with the newly held pair (zero after logout or a failed refresh).
func OnSessionChange(fn func(models.SessionPair)) Option {
	return func(c *Client) { c.onChange = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client talks to the lockerhub REST API. It holds one session and swaps in a
// fresh pair when the access token is rejected, retrying the request once.
// Parallel requests that hit a 401 share a single refresh exchange.
type Client struct {
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
	onChange func(models.SessionPair)

	mu      sync.Mutex
	session models.SessionPair

	refreshes singleflight.Group
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the currently held pair.
func (c *Client) Session() models.SessionPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) LoggedIn() bool {
	return c.Session().RefreshToken != ""
}

func (c *Client) setSession(pair models.SessionPair) {
	c.mu.Lock()
	c.session = pair
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(pair)
	}
}

type request struct {
	method string
	path   string
	body   any
	authed bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	access := ""
	if req.authed {
		current := c.Session()
		if current.RefreshToken == "" && current.AccessToken == "" {
			return ErrNoSession
		}
		access = current.AccessToken
	}

	resp, err := c.send(ctx, req, payload, access)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && req.authed {
		drain(resp)

		if err := c.refresh(ctx, access); err != nil {
			return err
		}

		resp, err = c.send(ctx, req, payload, c.Session().AccessToken)
		if err != nil {
			return err
		}
	}

	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, req request, payload []byte, access string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	return resp, nil
}

// refresh exchanges the held refresh token unless another caller already
// replaced the access token that was rejected.
func (c *Client) refresh(ctx context.Context, stale string) error {
	current := c.Session()
	if current.AccessToken != stale {
		return nil
	}
	if current.RefreshToken == "" {
		return ErrSessionExpired
	}

	_, err, shared := c.refreshes.Do(current.RefreshToken, func() (any, error) {
		if latest := c.Session(); latest.AccessToken != stale {
			return latest, nil
		}

		var pair models.SessionPair
		resp, err := c.send(context.WithoutCancel(ctx), request{
			method: http.MethodPost,
			path:   "/api/auth/refresh",
		}, mustJSON(map[string]string{"refresh": current.RefreshToken}), "")
		if err != nil {
			return nil, err
		}
		if err := decode(resp, &pair); err != nil {
			if StatusOf(err) == http.StatusUnauthorized || StatusOf(err) == http.StatusBadRequest {
				c.log.Debug().Err(err).Msg("refresh rejected, clearing session")
				c.setSession(models.SessionPair{})
				return nil, ErrSessionExpired
			}
			return nil, err
		}

		c.setSession(pair)
		c.log.Debug().Msg("session refreshed")
		return pair, nil
	})
	if shared {
		c.log.Debug().Msg("joined in-flight refresh")
	}
	return err
}

func decode(resp *http.Response, out any) error {
	defer drain(resp)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func mustJSON(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return payload
}
