package coselpro

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/slogx"
)

// DefaultSchema is the gateway schema holding the CoSelPro functions and views.
const DefaultSchema = "rest"

// DefaultTimeout bounds a single gateway exchange.
const DefaultTimeout = 30 * time.Second

// Client is a handle on the CoSelPro gateway. It carries no authentication
// state and is safe to share between Sessions and goroutines once configured.
type Client struct {
	BaseURL    string
	Schema     string
	HTTPClient *http.Client

	// Logger receives diagnostics on error paths. slog.Default() when nil.
	Logger *slog.Logger

	// Cache receives every token the gateway issues or renews. nil disables
	// caching.
	Cache TokenStore

	// OnCacheError is called when writing to Cache fails after the gateway
	// issued a token. The token is still returned to the caller. When nil the
	// failure is logged as a warning.
	OnCacheError func(ctx context.Context, op string, err error)
}

// NewClient creates a client for baseURL using the "rest" schema and the
// default token file as cache.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Schema:  DefaultSchema,
		HTTPClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: &slogx.Transport{},
		},
		Cache: DefaultTokenFile(),
	}
}

// WithSchema returns a copy of c targeting another schema. c is not modified.
func (c *Client) WithSchema(schema string) *Client {
	clone := *c
	clone.Schema = schema
	return &clone
}

// WithBaseURL returns a copy of c sending requests to baseURL. c is not
// modified.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &clone
}

// logger returns the context logger when one is attached, else c.Logger.
func (c *Client) logger(ctx context.Context) *slog.Logger {
	return slogx.FromContext(ctx, c.Logger)
}

func (c *Client) schema() string {
	if c.Schema == "" {
		return DefaultSchema
	}
	return c.Schema
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
