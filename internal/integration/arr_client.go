package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/logger"
)

// apiPrefix is the Radarr API root appended to the configured base URL.
const apiPrefix = "/api"

// maxErrorBodyBytes caps how much of an error response is kept for diagnostics.
const maxErrorBodyBytes = 512

// ErrMalformedResponse is returned when Radarr answers with JSON that lacks required fields.
var ErrMalformedResponse = errors.New("malformed response from Radarr")

// APIError describes a non-2xx answer from Radarr.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// ArrClientOptions configures HTTPArrClient.
type ArrClientOptions struct {
	BaseURL    string // scheme://host:port/webroot
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Clock      clock.Clock
	Logger     logger.Sink
	HTTPClient *http.Client
}

// HTTPArrClient talks to a single Radarr instance over its JSON API.
type HTTPArrClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	clock      clock.Clock
	log        logger.Sink
}

var _ ArrClient = (*HTTPArrClient)(nil)

// NewArrClient creates a client for the Radarr instance at opts.BaseURL,
// filling in defaults for unset options.
func NewArrClient(opts ArrClientOptions) *HTTPArrClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPArrClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		maxRetries: opts.MaxRetries,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

// isRetryableError checks if an error is a transient network error worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for timeout
	if os.IsTimeout(err) {
		return true
	}

	// Check for common network errors in the error string
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"eof",
		"connection timed out",
		"temporary failure",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// isUndeliveredError reports errors raised before the request reached Radarr,
// where resending cannot duplicate a command.
func isUndeliveredError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable")
}

// doRequest performs an HTTP request with automatic retry for transient errors and
// decodes a 2xx JSON answer into out (when out is non-nil).
//
// POST queues a command, so it is only resent when the request never left this
// host; a 5xx or a dropped connection may mean Radarr already queued it.
func (c *HTTPArrClient) doRequest(ctx context.Context, method, endpoint string, bodyData interface{}, out interface{}) error {
	var jsonBytes []byte
	if bodyData != nil {
		var err error
		if jsonBytes, err = json.Marshal(bodyData); err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, endpoint, err)
		}
	}

	retryable := isRetryableError
	if method == http.MethodPost {
		retryable = isUndeliveredError
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			c.log.Infof("Radarr API request failed (attempt %d/%d): %v, retrying in %s...", attempt, c.maxRetries, lastErr, backoff)
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return err
			}
		}

		resp, err := c.send(ctx, method, endpoint, jsonBytes)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return err
			}
			continue
		}

		// 5xx might be Radarr restarting or busy; everything else is final
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = readAPIError(method, endpoint, resp)
			if method == http.MethodPost {
				return lastErr
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return readAPIError(method, endpoint, resp)
		}

		return decodeBody(resp, out)
	}

	return fmt.Errorf("Radarr API unavailable after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *HTTPArrClient) send(ctx context.Context, method, endpoint string, jsonBytes []byte) (*http.Response, error) {
	var body io.Reader
	if jsonBytes != nil {
		body = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if jsonBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func readAPIError(method, endpoint string, resp *http.Response) error {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	// Drain the rest to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)
	return &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// decodeBody decodes JSON with UseNumber so integer fields survive a round trip untouched.
func decodeBody(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// DispatchCommand posts a named command and normalizes the answer into a handle.
// Radarr answers either with the command object or a one-element array of it.
func (c *HTTPArrClient) DispatchCommand(ctx context.Context, name string, params map[string]interface{}) (*CommandHandle, error) {
	payload := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["name"] = name

	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodPost, "/command", payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", name, err)
	}

	handle, err := ParseCommandHandle(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", name, err)
	}
	c.log.Debugf("Radarr %s command response: %s", name, string(raw))
	return handle, nil
}

// GetCommand re-fetches a command's current state.
func (c *HTTPArrClient) GetCommand(ctx context.Context, id int64) (*CommandHandle, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/command/"+strconv.FormatInt(id, 10), nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to get command %d: %w", id, err)
	}
	handle, err := ParseCommandHandle(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get command %d: %w", id, err)
	}
	return handle, nil
}

// GetMovie fetches the full movie record, keeping every field Radarr sent.
func (c *HTTPArrClient) GetMovie(ctx context.Context, movieID int64) (MovieRecord, error) {
	var rec MovieRecord
	if err := c.doRequest(ctx, http.MethodGet, "/movie/"+strconv.FormatInt(movieID, 10), nil, &rec); err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", movieID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("failed to get movie %d: %w: empty body", movieID, ErrMalformedResponse)
	}
	return rec, nil
}

// PutMovie writes a movie record back and returns what Radarr persisted.
func (c *HTTPArrClient) PutMovie(ctx context.Context, movieID int64, rec MovieRecord) (MovieRecord, error) {
	var saved MovieRecord
	if err := c.doRequest(ctx, http.MethodPut, "/movie/"+strconv.FormatInt(movieID, 10), rec, &saved); err != nil {
		return nil, fmt.Errorf("failed to update movie %d: %w", movieID, err)
	}
	return saved, nil
}
