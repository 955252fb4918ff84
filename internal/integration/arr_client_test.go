package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/testutil"
)

const testAPIKey = "test-api-key"

func newTestClient(t *testing.T, baseURL string, maxRetries int) (*HTTPArrClient, *testutil.MockClock) {
	t.Helper()
	clk := testutil.NewMockClock()
	return NewArrClient(ArrClientOptions{
		BaseURL:    baseURL,
		APIKey:     testAPIKey,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		Clock:      clk,
		Logger:     logger.Discard(),
	}), clk
}

// =============================================================================
// isRetryableError tests
// =============================================================================

type testError struct {
	msg string
}

func (e *testError) Error() string { return e.msg }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", &testError{"dial tcp: connection refused"}, true},
		{"connection reset", &testError{"connection reset by peer"}, true},
		{"i/o timeout", &testError{"i/o timeout"}, true},
		{"no such host", &testError{"lookup radarr: no such host"}, true},
		{"EOF", &testError{"unexpected EOF"}, true},
		{"tls", &testError{"x509: certificate signed by unknown authority"}, false},
		{"plain", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableError(tt.err))
		})
	}
}

// =============================================================================
// Transport tests
// =============================================================================

func TestDoRequest_SendsAPIKeyAndJSON(t *testing.T) {
	var gotKey, gotType, gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 5, "state": "queued"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL+"/radarr/", 1)
	handle, err := client.DispatchCommand(context.Background(), CommandRescanMovie, map[string]interface{}{"movieId": 12})
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, gotKey)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "/radarr/api/command", gotPath)
	assert.JSONEq(t, `{"name": "RescanMovie", "movieId": 12}`, gotBody)
	assert.Equal(t, &CommandHandle{ID: 5, State: "queued"}, handle)
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id": 9, "state": "completed"}`))
	}))
	defer server.Close()

	client, clk := newTestClient(t, server.URL, 3)
	handle, err := client.GetCommand(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "completed", handle.State)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clk.Sleeps())
}

func TestDoRequest_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 2)
	_, err := client.GetCommand(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoRequest_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Unauthorized"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 3)
	_, err := client.GetMovie(context.Background(), 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Unauthorized")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRequest_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, clk := newTestClient(t, url, 2)
	_, err := client.GetCommand(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable after 2 attempts")
	assert.Equal(t, 1, clk.SleepCount())
}

func TestIsUndeliveredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"dial op", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, true},
		{"connection refused", &testError{"dial tcp: connection refused"}, true},
		{"no such host", &testError{"lookup radarr: no such host"}, true},
		{"read op", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}, false},
		{"EOF after write", &testError{"unexpected EOF"}, false},
		{"i/o timeout", &testError{"i/o timeout"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isUndeliveredError(tt.err))
		})
	}
}

func TestDoRequest_CommandNotResentAfterServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, clk := newTestClient(t, server.URL, 3)
	_, err := client.DispatchCommand(context.Background(), CommandRescanMovie, map[string]interface{}{"movieId": 1})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, clk.SleepCount())
}

func TestDoRequest_CommandResentWhenRadarrUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, clk := newTestClient(t, url, 3)
	_, err := client.DispatchCommand(context.Background(), CommandRescanMovie, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable after 3 attempts")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clk.Sleeps())
}

// =============================================================================
// Command dispatch tests
// =============================================================================

func TestDispatchCommand_ObjectAndArrayNormalizeTheSame(t *testing.T) {
	for _, wrap := range []bool{false, true} {
		fake := testutil.NewFakeRadarr(testAPIKey)
		fake.WrapInArray = wrap

		client, _ := newTestClient(t, fake.URL(), 1)
		handle, err := client.DispatchCommand(context.Background(), CommandRescanMovie, map[string]interface{}{"movieId": 3})
		fake.Close()

		require.NoError(t, err, "wrap=%v", wrap)
		assert.Equal(t, &CommandHandle{ID: 1, State: "queued"}, handle, "wrap=%v", wrap)
	}
}

func TestDispatchCommand_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name": "RescanMovie"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 3)
	_, err := client.DispatchCommand(context.Background(), CommandRescanMovie, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestDispatchCommand_NameCannotBeOverridden(t *testing.T) {
	fake := testutil.NewFakeRadarr(testAPIKey)
	defer fake.Close()

	client, _ := newTestClient(t, fake.URL(), 1)
	_, err := client.DispatchCommand(context.Background(), CommandRenameMovie, map[string]interface{}{"name": "Other"})
	require.NoError(t, err)
	assert.Equal(t, []string{CommandRenameMovie}, fake.Commands())
}

// =============================================================================
// Movie tests
// =============================================================================

func TestGetMovie_PreservesLargeIntegers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title": "Heat", "sizeOnDisk": 9007199254740993, "hasFile": true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 1)
	rec, err := client.GetMovie(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), rec["sizeOnDisk"])
	assert.True(t, rec.HasFile())
}

func TestGetMovie_NullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 1)
	_, err := client.GetMovie(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestPutMovie_RoundTripsBody(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/movie/7", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(data)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 1)
	saved, err := client.PutMovie(context.Background(), 7, MovieRecord{"title": "Heat", "monitored": true})
	require.NoError(t, err)

	assert.JSONEq(t, `{"title": "Heat", "monitored": true}`, gotBody)
	assert.Equal(t, "Heat", saved.Title())
}
