package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archie/internal/config"
	"archie/internal/envelope"
	"archie/internal/service"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	docsDir := t.TempDir()
	adr := `# ADR.0025 — Adopt event sourcing

## Decision

All order state changes are persisted as events.
`
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "adr-0025.md"), []byte(adr), 0o644))

	cfg := config.Default()
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.HeartbeatInterval = 50 * time.Millisecond

	system, err := service.Build(cfg, docsDir, nil)
	require.NoError(t, err)

	return New(cfg.Server, system.Pipeline, system.Breaker)
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestQueryEndpoint(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/v1/query", `{"query": "What is ADR.0025?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, env.Validate())
	assert.Contains(t, env.Answer, "persisted as events")
	assert.Equal(t, []string{"ADR.0025"}, env.Sources)
}

func TestQueryEndpointRequiresQuery(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/v1/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, srv, "/v1/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamEndpointDelimitedEnvelope(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/v1/query/stream", `{"query": "hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	body := strings.TrimSpace(w.Body.String())
	lines := strings.Split(body, "\n")
	final := lines[len(lines)-1]
	require.True(t, strings.HasPrefix(final, envelope.StartDelimiter), "final line: %q", final)
	require.True(t, strings.HasSuffix(final, envelope.EndDelimiter), "final line: %q", final)

	inner := strings.TrimSuffix(strings.TrimPrefix(final, envelope.StartDelimiter), envelope.EndDelimiter)
	env, err := envelope.Parse([]byte(inner))
	require.NoError(t, err)
	assert.NotEmpty(t, env.Answer)

	// Any preceding lines are heartbeats.
	for _, line := range lines[:len(lines)-1] {
		assert.Contains(t, line, "heartbeat")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "closed", health["embedding_breaker"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
