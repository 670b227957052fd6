// Package fetch provides the process-wide GET-with-cache helper used by the
// signal connectors and the blowup component fetchers.
//
// The contract is deliberately forgiving: callers never receive an error.
// Within the cache window two calls for the same (url, params) return the
// identical body without network I/O. On HTTP 429 the cached body is
// preferred even if expired. On any other failure the cached body is
// returned if one exists, otherwise the result is absent.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is the cache window for repeated requests.
	DefaultTTL = 60 * time.Second

	// DefaultTimeout bounds every outbound request.
	DefaultTimeout = 10 * time.Second

	// maxCacheEntries caps the LRU cache for long-running deployments.
	maxCacheEntries = 1024

	// maxBodyBytes guards against pathological upstream responses.
	maxBodyBytes = 10 << 20
)

// Client is the shared cached HTTP GET helper.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.Mutex
	cache *responseCache
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTTL overrides the cache window.
func WithTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cache.ttl = d
	}
}

// New creates a fetch client with the default cache window and timeout.
func New(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("component", "fetch").Logger(),
		cache:      newResponseCache(DefaultTTL, maxCacheEntries),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a cached GET and returns the body. The second return is false
// when no body is available from either the network or the cache.
func (c *Client) Get(ctx context.Context, rawURL string, params map[string]string, headers map[string]string) ([]byte, bool) {
	key := cacheKey(rawURL, params)

	c.mu.Lock()
	body, fresh, found := c.cache.get(key)
	c.mu.Unlock()

	if found && fresh {
		return body, true
	}

	fetched, status, err := c.doGet(ctx, rawURL, params, headers)
	switch {
	case err == nil && status == http.StatusOK:
		c.mu.Lock()
		c.cache.put(key, fetched)
		c.mu.Unlock()
		return fetched, true

	case err == nil && status == http.StatusTooManyRequests:
		// Rate limited: a stale body beats nothing.
		if found {
			c.log.Debug().Str("url", rawURL).Msg("rate limited, serving stale cache")
			return body, true
		}
		c.log.Warn().Str("url", rawURL).Msg("rate limited with no cached body")
		return nil, false

	default:
		if found {
			c.log.Debug().Str("url", rawURL).Int("status", status).Msg("fetch failed, serving stale cache")
			return body, true
		}
		if err != nil {
			c.log.Debug().Err(err).Str("url", rawURL).Msg("fetch failed")
		} else {
			c.log.Debug().Int("status", status).Str("url", rawURL).Msg("fetch returned non-200")
		}
		return nil, false
	}
}

// GetJSON performs a cached GET and decodes the body into v.
// Returns false when no body is available or the body does not decode.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params map[string]string, headers map[string]string, v interface{}) bool {
	body, ok := c.Get(ctx, rawURL, params, headers)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.log.Debug().Err(err).Str("url", rawURL).Msg("json decode failed")
		return false
	}
	return true
}

// GetText performs a cached GET and returns the body as a string.
func (c *Client) GetText(ctx context.Context, rawURL string, params map[string]string, headers map[string]string) (string, bool) {
	body, ok := c.Get(ctx, rawURL, params, headers)
	if !ok {
		return "", false
	}
	return string(body), true
}

// Sweep evicts expired cache entries. Run periodically by the scheduler.
func (c *Client) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.sweep()
}

// CacheLen returns the number of cached entries.
func (c *Client) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.len()
}

// doGet issues the actual request. Not called while holding the cache mutex.
func (c *Client) doGet(ctx context.Context, rawURL string, params map[string]string, headers map[string]string) ([]byte, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
