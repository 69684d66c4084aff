// Package gateway is the HTTP implementation of console.Gateway. Each
// Client talks to one resource collection of the console API, for example
// {base}/api/v1/inventory.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/schoolhealth/nurse-console/internal/console"
)

// Resource collection names.
const (
	KindInventory           = "inventory"
	KindMedicationRequests  = "medication-requests"
	KindVaccinationSessions = "vaccination-sessions"
)

const maxBodyBytes = 4 << 20

var ErrMalformedResponse = errors.New("malformed gateway response")

type config struct {
	httpClient *http.Client
	token      string
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*config)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) Option {
	return func(cfg *config) { cfg.token = token }
}

// WithRateLimit caps outgoing calls at rps per second. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *config) {
		if rps <= 0 {
			cfg.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// Client is a console.Gateway for records of type T.
type Client[T any] struct {
	endpoint string
	cfg      config
}

var _ console.Gateway[struct{}] = (*Client[struct{}])(nil)

// NewClient returns a client for the collection kind under baseURL.
func NewClient[T any](baseURL, kind string, opts ...Option) (*Client[T], error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url scheme must be http or https, got %q", u.Scheme)
	}
	if kind == "" {
		return nil, fmt.Errorf("resource kind is required")
	}
	cfg := config{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Client[T]{
		endpoint: strings.TrimRight(u.String(), "/") + "/api/v1/" + kind,
		cfg:      cfg,
	}, nil
}

// Endpoint returns the collection URL.
func (c *Client[T]) Endpoint() string { return c.endpoint }

func (c *Client[T]) List(ctx context.Context, params console.ListParams) (console.Envelope[[]T], error) {
	q := url.Values{}
	for k, v := range params.Query() {
		q.Set(k, v)
	}
	return call[[]T](ctx, &c.cfg, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
}

func (c *Client[T]) Get(ctx context.Context, id uuid.UUID) (console.Envelope[T], error) {
	return call[T](ctx, &c.cfg, http.MethodGet, c.endpoint+"/"+id.String(), nil)
}

func (c *Client[T]) Create(ctx context.Context, payload T) (console.Envelope[T], error) {
	return call[T](ctx, &c.cfg, http.MethodPost, c.endpoint, payload)
}

func (c *Client[T]) Update(ctx context.Context, id uuid.UUID, payload T) (console.Envelope[T], error) {
	return call[T](ctx, &c.cfg, http.MethodPut, c.endpoint+"/"+id.String(), payload)
}

func (c *Client[T]) Transition(ctx context.Context, id uuid.UUID, action console.Action, payload console.TransitionPayload) (console.Envelope[console.Empty], error) {
	target := c.endpoint + "/" + id.String() + "/" + url.PathEscape(string(action))
	return call[console.Empty](ctx, &c.cfg, http.MethodPost, target, payload)
}

func (c *Client[T]) Delete(ctx context.Context, id uuid.UUID) (console.Envelope[console.Empty], error) {
	return call[console.Empty](ctx, &c.cfg, http.MethodDelete, c.endpoint+"/"+id.String(), nil)
}

// call performs one round trip and decodes the envelope. Any response
// whose body is a JSON envelope is returned with a nil error; an error
// status always yields Success=false.
func call[E any](ctx context.Context, cfg *config, method, target string, body interface{}) (console.Envelope[E], error) {
	var env console.Envelope[E]

	if cfg.limiter != nil {
		if err := cfg.limiter.Wait(ctx); err != nil {
			return env, fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return env, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.token)
	}

	start := time.Now()
	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		cfg.logger.Warn().Err(err).Str("method", method).Str("url", target).Msg("gateway call failed")
		return env, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return env, fmt.Errorf("read response: %w", err)
	}
	cfg.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway call")

	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		env.Success = false
	}
	return env, nil
}
