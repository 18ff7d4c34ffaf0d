// Package feed fetches JSON documents from metering and CRM endpoints.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
)

// ErrTransport is the base class of feed errors. A run that cannot obtain
// its usage or contract feed aborts.
var ErrTransport = errors.New("transport error")

var (
	// ErrConnect reports an unreachable endpoint.
	ErrConnect = fmt.Errorf("%w: connection failed", ErrTransport)
	// ErrTimeout reports a request that ran out of time.
	ErrTimeout = fmt.Errorf("%w: request timed out", ErrTransport)
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport error: %s returned status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Client fetches JSON lists with a fixed timeout.
type Client struct {
	http *http.Client
	log  *zap.Logger
}

// NewClient builds a feed client. The timeout is generous because the CRM
// needs time to wake up.
func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log.Named("feed"),
	}
}

// FetchJSON downloads a JSON array of objects from endpoint with optional
// query parameters and headers. Connection failure, timeout and non-2xx
// status are reported as distinguishable errors.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, query map[string]string, headers map[string]string) ([]map[string]any, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %s: %v", ErrTransport, endpoint, err)
	}
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: endpoint, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %s returned malformed JSON: %v", ErrTransport, endpoint, err)
	}

	c.log.Debug("fetched feed", zap.String("url", endpoint), zap.Int("records", len(records)))
	return records, nil
}

func classify(err error) error {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
}
