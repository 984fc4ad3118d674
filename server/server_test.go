package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/hannes/kiji-autolabel/config"
	"github.com/hannes/kiji-autolabel/pii/align"
	detectors "github.com/hannes/kiji-autolabel/pii/detectors"
	"github.com/hannes/kiji-autolabel/pii/labels"
)

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()
	cfg := config.DefaultConfig().Server
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg, labels.Default(), detectors.DefaultValidator(), zaptest.NewLogger(t))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"kiji-autolabel"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAlignEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/align",
		`{"template":"Mój PESEL to [PESEL], tel. [phone]","rendered":"Mój PESEL to 44051401358, tel. 600 100 200"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp alignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []align.Span{{Start: 13, End: 24, Label: "pesel"}}, resp.Entities)
	assert.Equal(t, 1, resp.Diagnostics.Placeholders)
	assert.Equal(t, 1, resp.Diagnostics.Exhausted, "the anchor is walked again and runs out")
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, detectors.ReasonChecksum, resp.Findings[0].Reason)

	require.Len(t, resp.Unlabeled, 1)
	assert.Equal(t, "phone", resp.Unlabeled[0].Label)
	assert.Equal(t, "600 100 200", resp.Unlabeled[0].Text)
}

func TestAlignEndpointNoEntities(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/align", `{"template":"plain","rendered":"plain"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entities":[]`)
	assert.NotContains(t, rec.Body.String(), "findings")
}

func TestAlignEndpointErrors(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{"template":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"tpl":"x"}`, http.StatusBadRequest},
		{"preflight", http.MethodOptions, "", http.StatusOK},
	}

	h := newTestServer(t, nil).Handler()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, "/api/align", tc.body)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.ServerConfig) { c.MaxBodyBytes = 64 }).Handler()

	body := `{"template":"[name]","rendered":"` + strings.Repeat("a", 200) + `"}`
	rec := do(t, h, http.MethodPost, "/api/align", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCanonicalizeEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/canonicalize", `{"labels":["ID_NUMBER","Phone","time",""]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"labels":{"ID_NUMBER":"document-number","Phone":"phone","time":null,"":null},
		"drop":["genre","healthcare-professional","model","programming-language","subject","time","version"]
	}`, rec.Body.String())
}

func TestCanonicalizeEndpointWithoutCanonicalizer(t *testing.T) {
	cfg := config.DefaultConfig().Server
	h := NewServer(cfg, nil, nil, zaptest.NewLogger(t)).Handler()

	rec := do(t, h, http.MethodPost, "/api/canonicalize", `{"labels":["Phone",""]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"labels":{"Phone":"Phone","":null}}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 2
	}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORSOrigins(t *testing.T) {
	h := newTestServer(t, func(c *config.ServerConfig) {
		c.AllowedOrigins = []string{"https://labels.example.com"}
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://labels.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://labels.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	s := newTestServer(t, func(c *config.ServerConfig) { c.Port = ":" + strconv.Itoa(port) })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
