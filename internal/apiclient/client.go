// Package apiclient talks to the remote membership API and validates what it
// returns at the boundary, so the rest of fieldsync works with typed records.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/sony/gobreaker"
)

// Client performs authenticated GET requests. path is relative to the API base
// URL unless it is already absolute (pagination links). A non-2xx status is
// not an error; callers treat it as "no data".
type Client interface {
	Get(ctx context.Context, path string, query url.Values, token string) (int, []byte, error)
}

const maxBodySize = 16 << 20

var errServerStatus = errors.New("server error status")

type response struct {
	status int
	body   []byte
}

// HTTPClient implements Client over net/http, behind a circuit breaker so a
// dead API fails fast instead of stalling a whole sync on timeouts.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logging.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "membership-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

func (c *HTTPClient) resolve(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

func (c *HTTPClient) Get(ctx context.Context, path string, query url.Values, token string) (int, []byte, error) {
	target := c.resolve(path, query)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}

		r := &response{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, errServerStatus
		}
		return r, nil
	})

	if r, ok := result.(*response); ok && r != nil {
		if err != nil {
			c.log.Warn(ctx, "api request failed", "path", path, "status", r.status)
		}
		return r.status, r.body, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return 0, nil, common.ErrUnavailable
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
