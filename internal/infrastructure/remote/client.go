// Package remote holds HTTP clients for the services this one depends on.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultTimeout = 3 * time.Second

var errRemoteNotFound = errors.New("remote resource not found")

// jsonClient performs bounded JSON GETs against one base URL and classifies
// failures: 404 is reported as errRemoteNotFound for the caller to translate,
// 401/403 as Unauthorized, everything else as Unavailable.
type jsonClient struct {
	name    string
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func newJSONClient(name, baseURL string, timeout time.Duration) *jsonClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &jsonClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// only outages count against the breaker, not 404s or rejected tokens
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, apperr.ErrUnavailable)
			},
		}),
	}
}

// get fails fast with Unavailable while the breaker is open.
func (c *jsonClient) get(ctx context.Context, path string, header http.Header, out any) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, path, header, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Unavailable(c.name, err)
	}
	return err
}

func (c *jsonClient) do(ctx context.Context, path string, header http.Header, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Unavailable(c.name, timeoutCause(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errRemoteNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.New(apperr.ErrUnauthorized, c.name+" rejected the caller's credential")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Unavailable(c.name, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Unavailable(c.name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// timeoutCause makes client-side timeouts match context.DeadlineExceeded.
func timeoutCause(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
