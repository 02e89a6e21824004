// Package client is a Go SDK for the storefront REST API with the read cache
// and invalidation rules the web shop relies on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoginRedirectDelay leaves time for the "please log in" notice to be read.
const LoginRedirectDelay = 500 * time.Millisecond

const (
	pathCategories = "/api/categories"
	pathProducts   = "/api/products"
	pathCart       = "/api/cart"
	pathWishlist   = "/api/wishlist"
	pathOrders     = "/api/orders"
	pathAuthUser   = "/api/auth/user"
)

type Client struct {
	baseURL    string
	http       *http.Client
	mu         sync.RWMutex
	token      string
	cache      *cache
	group      singleflight.Group
	state      *State
	loginDelay time.Duration
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends the session as a bearer token instead of relying on the
// cookie jar.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		cache:      newCache(),
		state:      NewState(),
		loginDelay: LoginRedirectDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Login and logout answer with redirects meant for a browser.
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c, nil
}

func (c *Client) State() *State {
	return c.state
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	return apperr.KindOf(err) == apperr.Unauthorized
}

// LoginURL is where the browser goes to start a login.
func (c *Client) LoginURL() string {
	return c.baseURL + "/api/login"
}

// LoginRedirect waits the fixed notice delay, then yields the login URL.
func (c *Client) LoginRedirect(ctx context.Context) (string, error) {
	t := time.NewTimer(c.loginDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
		return c.LoginURL(), nil
	}
}

// Invalidate drops cached reads under the given path prefixes.
func (c *Client) Invalidate(prefixes ...string) {
	c.cache.invalidate(prefixes...)
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.sessionToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, responseError(resp.StatusCode, data)
	}
	return data, nil
}

func responseError(status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)
	kind := apperr.FromStatus(status)
	if body.Code != "" {
		kind = apperr.ParseKind(body.Code)
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return apperr.New(kind, msg)
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// get serves from cache, collapsing concurrent identical reads into one
// request. Reads only share a request started at the same cache version, so
// a read issued after an invalidation never receives an older response.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	key := cacheKey(path, query)
	if data, ok := c.cache.get(key); ok {
		return json.Unmarshal(data, dest)
	}

	version := c.cache.version(key)
	flight := key + "#" + strconv.FormatUint(version, 10)
	v, err, shared := c.group.Do(flight, func() (interface{}, error) {
		data, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		if !c.cache.put(key, data, version) {
			c.logger.Debug("Dropped stale response", zap.String("key", key))
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if shared {
		c.logger.Debug("Shared in-flight read", zap.String("key", key))
	}
	return json.Unmarshal(v.([]byte), dest)
}

// getFresh bypasses the cache for reads that must reflect the server now.
func (c *Client) getFresh(ctx context.Context, path string, query url.Values, dest interface{}) ([]byte, error) {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return nil, fmt.Errorf("failed to decode GET %s: %w", path, err)
	}
	return data, nil
}

// send performs a mutation and invalidates the given prefixes on success.
func (c *Client) send(ctx context.Context, method, path string, body, dest interface{}, invalidate ...string) error {
	data, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	c.cache.invalidate(invalidate...)
	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// Logout ends the server session and forgets everything cached for it.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/logout", nil, nil)
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.cache.reset()
	c.state.Reset()
	return err
}
