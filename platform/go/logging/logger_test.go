package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerEmitsCloudLoggingFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "rentals-test", Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Warn("late sweep finished", zap.Int("updated", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "rentals-test", entry["component"])
	require.Equal(t, "late sweep finished", entry["message"])
	require.EqualValues(t, 3, entry["updated"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "loud"})
	require.Error(t, err)
}

func TestRequestLoggerStoresLoggerOnContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	var seen bool
	h := chimw.RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/leases", nil))
	require.True(t, seen)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "request completed", entry["message"])
	require.EqualValues(t, http.StatusCreated, entry["status"])
	require.NotEmpty(t, entry["request_id"])
}

func TestFromContextOrFallsBack(t *testing.T) {
	t.Parallel()

	fallback := zap.NewNop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Same(t, fallback, FromRequest(req, fallback))
}

func TestConsoleEncoding(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "rentals-cli", Encoding: EncodingConsole, Output: &buf})
	require.NoError(t, err)

	logger.Info("schema ready")
	require.NoError(t, logger.Sync())
	require.Contains(t, buf.String(), "INFO")
	require.Contains(t, buf.String(), "schema ready")

	_, err = NewLogger(Config{Encoding: "xml"})
	require.Error(t, err)
}

func TestRequestLoggerQuietsHealthChecksAndWarnsOnClientErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Level: "info", Output: &buf})
	require.NoError(t, err)

	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/payments/x" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Empty(t, buf.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/payments/x", nil))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
}

func TestWithAddsFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	ctx := With(context.Background(), base, zap.String("contract_id", "LC-2025-0000ABCD"))
	FromContextOr(ctx, zap.NewNop()).Info("row skipped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "LC-2025-0000ABCD", entry["contract_id"])
}
