// Package cve fetches raw vulnerability records from the CVE Services
// registry.
package cve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public CVE Services record endpoint.
	DefaultBaseURL = "https://cveawg.mitre.org/api/cve"

	// DefaultUserAgent mimics a desktop browser; the registry rejects some
	// non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultTimeout is the hard limit for one registry request.
	DefaultTimeout = 10 * time.Second

	maxRecordBytes = 5 << 20
)

// ErrFetchFailed matches every registry failure.
var ErrFetchFailed = types.NewError(types.FETCH_FAILED, "registry fetch failed")

// Record is a raw registry record. Data is the response body, kept opaque.
type Record struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// String returns the record body.
func (r *Record) String() string {
	return string(r.Data)
}

// Config configures a Client. Zero values select the defaults.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client

	// RequestsPerSecond limits request rate across all callers sharing the
	// client. Zero disables limiting.
	RequestsPerSecond float64

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Client performs single GET lookups against the registry. It is safe for
// concurrent use. There is no retry; a failure is final for the caller.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewClient creates a registry client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "cve-client")
	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer("threatviz/cve")
	}
	return c
}

// Fetch retrieves the record for id. Non-200 responses, timeouts, oversized
// or non-JSON bodies all yield FETCH_FAILED.
func (c *Client) Fetch(ctx context.Context, id string) (*Record, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(id)

	ctx, span := c.tracer.Start(ctx, "threatviz.cve.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cve.id", id),
			attribute.String("http.url", endpoint),
		))
	defer span.End()

	rec, err := c.fetch(ctx, id, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "registry fetch failed", "cve.id", id, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response_size", len(rec.Data)))
	return rec, nil
}

func (c *Client) fetch(ctx context.Context, id, endpoint string) (*Record, error) {
	if id == "" {
		return nil, types.NewError(types.FETCH_FAILED, "empty identifier")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, types.WrapError(types.FETCH_FAILED, "rate limiter wait aborted", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.WrapError(types.FETCH_FAILED, "failed to build registry request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		fe := types.WrapError(types.FETCH_FAILED, fmt.Sprintf("registry request for %s failed", id), err)
		if errors.Is(err, context.DeadlineExceeded) {
			fe.Message = fmt.Sprintf("registry request for %s timed out after %s", id, c.timeout)
			fe.Retryable = true
		}
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &types.Error{
			Code:      types.FETCH_FAILED,
			Message:   fmt.Sprintf("registry returned HTTP %d for %s", resp.StatusCode, id),
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes+1))
	if err != nil {
		return nil, types.WrapError(types.FETCH_FAILED, "failed to read registry response", err)
	}
	if len(body) > maxRecordBytes {
		return nil, types.NewError(types.FETCH_FAILED,
			fmt.Sprintf("registry response for %s exceeds %d bytes", id, maxRecordBytes))
	}
	if !json.Valid(body) {
		return nil, types.NewError(types.FETCH_FAILED, fmt.Sprintf("registry response for %s is not valid JSON", id))
	}

	c.logger.DebugContext(ctx, "registry record fetched",
		"cve.id", id,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Record{ID: id, Data: json.RawMessage(body)}, nil
}
