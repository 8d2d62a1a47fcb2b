package identity

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrail/internal/platform/metrics"
)

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	extractor, err := New(ModeProxied, WithLogger(logger))
	require.NoError(t, err)

	var seen *ClientIdentity
	handler := Middleware(extractor, logger, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("stores identity for downstream handlers", func(t *testing.T) {
		req := proxiedRequest(map[string]string{
			HeaderClientVerify:      "SUCCESS",
			HeaderClientFingerprint: strings.Repeat("0f", 32),
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, strings.Repeat("0f", 32), seen.Fingerprint)
	})

	t.Run("rejects with typed code", func(t *testing.T) {
		seen = nil
		req := proxiedRequest(map[string]string{HeaderClientVerify: "FAILED"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"proxy_verification_failed"`)
		assert.Contains(t, rec.Body.String(), "FAILED")
		assert.Nil(t, seen)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityFailures.WithLabelValues("proxy_verification_failed", "proxied")))
	})
}
