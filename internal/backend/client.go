package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// Client is the shared JSON transport to the storefront backend. Every call goes
// through one circuit breaker; 4xx answers do not count against it.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Options
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	opts := cfg.Breaker
	opts.IsSuccessful = countsAsSuccess

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[[]byte]("storefront-backend", opts, log),
		log:     log,
	}
}

// countsAsSuccess keeps client errors and caller cancellations from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

// Do sends in as a JSON body (when non-nil) and decodes the answer into out (when non-nil).
// A non-2xx answer is returned as *StatusError; everything else that fails wraps ErrTransport.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request failed: %w", path, err)
		}
		payload = data
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, header, payload)
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return err
		}
		logger.FromContext(ctx, c.log).Warn("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrTransport, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, header http.Header, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
