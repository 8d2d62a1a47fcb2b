package identity

import (
	"context"
	"log/slog"
	"net/http"

	"certtrail/internal/platform/metrics"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/platform/httputil"
	"certtrail/pkg/requestcontext"
)

type contextKeyIdentity struct{}

// ContextKeyIdentity is exported for tests that build contexts by hand.
var ContextKeyIdentity = contextKeyIdentity{}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (*ClientIdentity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(*ClientIdentity)
	return id, ok && id != nil
}

// WithIdentity injects an identity into a context.
func WithIdentity(ctx context.Context, id *ClientIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// Middleware rejects requests whose client identity cannot be verified and
// stores the identity in the request context otherwise.
func Middleware(extractor Extractor, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := extractor.Extract(r)
			if err != nil {
				code := dErrors.CodeOf(err)
				m.IncIdentityFailure(string(code), string(extractor.Mode()))
				logger.WarnContext(ctx, "client identity rejected",
					"code", code,
					"mode", extractor.Mode(),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
