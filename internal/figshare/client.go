package figshare

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nitesh/readme_service/internal/logger"
)

const (
	// ProductionURL is the public figshare API host.
	ProductionURL = "https://api.figshare.com"
	// StageURL is the figshare stage host available to institutions.
	StageURL = "https://api.figsh.com"

	// DefaultPageSize is the page size used when listing reviews.
	DefaultPageSize = 1000

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 8 << 20
)

// Credentials are the two institution tokens. They are fixed for the life of a Client.
type Credentials struct {
	Production string
	Stage      string
}

// Client talks to the production and stage figshare APIs.
type Client struct {
	productionURL string
	stageURL      string
	creds         Credentials
	hc            *http.Client
	limiter       *rate.Limiter
	pageSize      int
	tracer        trace.Tracer
	log           *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithBaseURLs overrides the production and stage hosts (mirrors, tests).
func WithBaseURLs(production, stage string) Option {
	return func(c *Client) {
		if production != "" {
			c.productionURL = strings.TrimSuffix(production, "/")
		}
		if stage != "" {
			c.stageURL = strings.TrimSuffix(stage, "/")
		}
	}
}

// WithRateLimit paces outbound requests to rps per second; 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPageSize sets the reviews listing page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger injects a logger for request tracing.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client with the given credentials.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		productionURL: ProductionURL,
		stageURL:      StageURL,
		creds:         creds,
		hc:            &http.Client{Timeout: defaultTimeout},
		pageSize:      DefaultPageSize,
		tracer:        otel.Tracer("github.com/nitesh/readme_service/internal/figshare"),
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL selects the API host for a deployment.
func (c *Client) BaseURL(stage bool) string {
	if stage {
		return c.stageURL
	}
	return c.productionURL
}

func (c *Client) token(stage bool) string {
	if stage {
		return c.creds.Stage
	}
	return c.creds.Production
}

// get performs a GET against the selected host and returns the body of a 2xx answer.
// Non-2xx answers become *RequestError.
func (c *Client) get(ctx context.Context, stage, authenticated bool, path string, query url.Values) ([]byte, error) {
	u := c.BaseURL(stage) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "figshare.get", trace.WithAttributes(
		attribute.String("figshare.path", path),
		attribute.Bool("figshare.stage", stage),
	))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("figshare rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("figshare new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "token "+c.token(stage))
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	lat := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.log.Warn("figshare request failed", "url", u, "latency", lat, "error", err)
		return nil, fmt.Errorf("figshare request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("figshare read body: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug("figshare request", "url", u, "status", resp.StatusCode, "latency", lat)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, &RequestError{
			StatusCode:  resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
			URL:         u,
		}
	}
	return body, nil
}
