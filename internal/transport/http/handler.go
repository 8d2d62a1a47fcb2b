package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"certtrail/internal/authz"
	"certtrail/internal/engine"
	"certtrail/internal/identity"
	"certtrail/internal/trail"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/platform/httputil"
	"certtrail/pkg/requestcontext"
)

// TrailService is the engine surface the handlers depend on.
type TrailService interface {
	Register(ctx context.Context, p engine.Principal, req engine.RegisterRequest) (*trail.Record, error)
	Verify(ctx context.Context, p engine.Principal, req engine.VerifyRequest) (*engine.VerifyResult, error)
	BySubject(ctx context.Context, p engine.Principal, subjectID string) ([]trail.Record, error)
	ByAction(ctx context.Context, p engine.Principal, action string) ([]trail.Record, error)
	ByFingerprint(ctx context.Context, p engine.Principal, fingerprint string) ([]trail.Record, error)
	All(ctx context.Context, p engine.Principal, limit, offset int) (*engine.ListResult, error)
	RegisterCaller(ctx context.Context, p engine.Principal, serviceID string) (*authz.RegisteredCaller, error)
	ListCallers(ctx context.Context, p engine.Principal) ([]authz.RegisteredCaller, error)
}

// Handler serves the trail, caller registration and certificate endpoints.
// Every route expects identity.Middleware to have run.
type Handler struct {
	svc    TrailService
	logger *slog.Logger
	caller func(*http.Request) string
}

// NewHandler builds a Handler. callerOf resolves the caller identity the gate
// checks for trail routes; nil means the certificate fingerprint.
func NewHandler(svc TrailService, logger *slog.Logger, callerOf func(*http.Request) string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if callerOf == nil {
		callerOf = FingerprintCaller
	}
	return &Handler{svc: svc, logger: logger, caller: callerOf}
}

// FingerprintCaller treats the client certificate as the caller.
func FingerprintCaller(r *http.Request) string {
	if id, ok := identity.FromContext(r.Context()); ok {
		return id.Fingerprint
	}
	return ""
}

// ServiceCaller makes every trail request act as serviceID.
func ServiceCaller(serviceID string) func(*http.Request) string {
	return func(*http.Request) string { return serviceID }
}

// Register mounts the routes under r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/certificates/info", h.handleCertificateInfo)

	r.Route("/api/logs", func(r chi.Router) {
		r.Use(h.callerMiddleware)
		r.Post("/", h.handleCreateLog)
		r.Post("/verify", h.handleVerifyLog)
		r.Get("/", h.handleListLogs)
		r.Get("/uuid/{uuid}", h.handleLogsBySubject)
		r.Get("/action/{action}", h.handleLogsByAction)
		r.Get("/fingerprint/{fingerprint}", h.handleLogsByFingerprint)
	})

	r.Route("/api/services", func(r chi.Router) {
		r.Post("/", h.handleRegisterService)
		r.Get("/", h.handleListServices)
	})
}

func (h *Handler) callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithCallerID(r.Context(), h.caller(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal pairs the resolved caller with the request's certificate.
func principal(ctx context.Context) engine.Principal {
	id, _ := identity.FromContext(ctx)
	return engine.Principal{CallerID: requestcontext.CallerID(ctx), Identity: id}
}

// controllerPrincipal uses the certificate itself as requester, so caller
// management is never performed under a shared service identity.
func controllerPrincipal(ctx context.Context) engine.Principal {
	id, _ := identity.FromContext(ctx)
	p := engine.Principal{Identity: id}
	if id != nil {
		p.CallerID = id.Fingerprint
	}
	return p
}

func (h *Handler) handleCertificateInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeCertificateRequired, "Client certificate required"))
		return
	}
	writeSuccess(w, http.StatusOK, toCertificateInfo(id), "Certificate information retrieved")
}

func (h *Handler) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateLogRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.svc.Register(ctx, principal(ctx), engine.RegisterRequest{
		SubjectID: req.UUID,
		Action:    req.Action,
		Payload:   req.Data,
	})
	if err != nil {
		h.fail(w, r, "create log failed", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toLogResponse(*rec), "Log created successfully")
}

func (h *Handler) handleVerifyLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyLogRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := principal(ctx)
	res, err := h.svc.Verify(ctx, p, engine.VerifyRequest{SubjectID: req.UUID, Action: req.Action})
	if err != nil {
		h.fail(w, r, "verify log failed", err)
		return
	}
	msg := "Log verification failed"
	if res.Valid {
		msg = "Log verified successfully"
	}
	resp := VerifyResponse{
		Verified: res.Valid,
		Hash:     res.Digest,
		UUID:     req.UUID,
		Action:   req.Action,
	}
	if res.Record != nil {
		resp.Action = string(res.Record.Action)
	}
	if p.Identity != nil {
		resp.UserFingerprint = p.Identity.Fingerprint
	}
	writeSuccess(w, http.StatusOK, resp, msg)
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.svc.All(ctx, principal(ctx), limit, offset)
	if err != nil {
		h.fail(w, r, "list logs failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPagedLogList(page), "Logs retrieved successfully")
}

func (h *Handler) handleLogsBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.svc.BySubject(ctx, principal(ctx), chi.URLParam(r, "uuid"))
	h.writeRecords(w, r, records, err)
}

func (h *Handler) handleLogsByAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.svc.ByAction(ctx, principal(ctx), chi.URLParam(r, "action"))
	h.writeRecords(w, r, records, err)
}

func (h *Handler) handleLogsByFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.svc.ByFingerprint(ctx, principal(ctx), chi.URLParam(r, "fingerprint"))
	h.writeRecords(w, r, records, err)
}

func (h *Handler) handleRegisterService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller, err := h.svc.RegisterCaller(ctx, controllerPrincipal(ctx), req.ServiceID)
	if err != nil {
		h.fail(w, r, "register service failed", err)
		return
	}
	h.logger.InfoContext(ctx, "service registered",
		"service_id", caller.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	writeSuccess(w, http.StatusCreated, toServiceResponse(*caller), "Service registered successfully")
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callers, err := h.svc.ListCallers(ctx, controllerPrincipal(ctx))
	if err != nil {
		h.fail(w, r, "list services failed", err)
		return
	}
	out := make([]ServiceResponse, 0, len(callers))
	for _, c := range callers {
		out = append(out, toServiceResponse(c))
	}
	writeSuccess(w, http.StatusOK, out, "Services retrieved successfully")
}

func (h *Handler) writeRecords(w http.ResponseWriter, r *http.Request, records []trail.Record, err error) {
	if err != nil {
		h.fail(w, r, "query logs failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, toLogList(records), "Logs retrieved successfully")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "request body too large"))
			return false
		}
		h.logger.WarnContext(r.Context(), "invalid request body",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// fail logs at a level matching the error class and writes the envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.InfoContext(ctx, msg,
			"code", code,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	httputil.WriteJSON(w, status, SuccessResponse{Success: true, Data: data, Message: message})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, key+" must be an integer")
	}
	return n, nil
}
