package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certtrail/internal/identity"
	"certtrail/internal/platform/metrics"
	"certtrail/internal/platform/middleware"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/platform/httputil"
	"certtrail/pkg/platform/middleware/metadata"
	"certtrail/pkg/platform/middleware/requesttime"
	"certtrail/pkg/requestcontext"
)

const serviceName = "certtrail"

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Handler   *Handler
	Extractor identity.Extractor
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
	MaxBodyBytes   int64
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// NewRouter builds the HTTP surface. /health and /metrics bypass certificate
// extraction; everything else requires a verified client identity.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(requesttime.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Timestamp: requestcontext.Now(r.Context()),
			Service:   serviceName,
		})
	})
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Extractor, logger, cfg.Metrics))
		if cfg.MaxBodyBytes > 0 {
			r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
		}
		cfg.Handler.Register(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Route not found"))
	})
	return r
}
