// Package engine orchestrates a trail request: authenticate, authorize, bind,
// then store or verify. Every step exits with a typed domain error.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certtrail/internal/authz"
	"certtrail/internal/hashbind"
	"certtrail/internal/identity"
	"certtrail/internal/platform/metrics"
	"certtrail/internal/trail"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/platform/sentinel"
	"certtrail/pkg/requestcontext"
)

const (
	DefaultReadAttempts    = 3
	DefaultReadBackoff     = 50 * time.Millisecond
	DefaultMaxPayloadBytes = 64 << 10
	DefaultPublishTimeout  = 10 * time.Second

	tracerName = "certtrail/engine"
)

// Gate is the authorization surface the engine depends on.
type Gate interface {
	Authorize(ctx context.Context, callerID string) error
	Register(ctx context.Context, requesterID, newCallerID string) (*authz.RegisteredCaller, error)
	List(ctx context.Context, requesterID string) ([]authz.RegisteredCaller, error)
}

// RecordPublisher announces committed records to downstream consumers.
// Publishing happens after the insert has committed; a failure never undoes it.
type RecordPublisher interface {
	Publish(ctx context.Context, rec trail.Record) error
}

// Service is the audit engine.
type Service struct {
	store           trail.Store
	gate            Gate
	binder          *hashbind.Binder
	logger          *slog.Logger
	metrics         *metrics.Metrics
	publisher       RecordPublisher
	tracer          trace.Tracer
	newID           func() uuid.UUID
	readAttempts    int
	readBackoff     time.Duration
	maxPayloadBytes int
	publishTimeout  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p RecordPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithIDGenerator replaces uuid.New for record IDs.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithReadRetry bounds retries of failed store reads.
func WithReadRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.readAttempts = attempts
		s.readBackoff = backoff
	}
}

// WithMaxPayloadBytes caps the opaque payload. Zero or negative disables the cap.
func WithMaxPayloadBytes(n int) Option {
	return func(s *Service) {
		s.maxPayloadBytes = n
	}
}

// WithPublishTimeout bounds each publish. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func New(store trail.Store, gate Gate, binder *hashbind.Binder, opts ...Option) *Service {
	if binder == nil {
		binder = hashbind.New(hashbind.SHA256)
	}
	s := &Service{
		store:           store,
		gate:            gate,
		binder:          binder,
		tracer:          otel.Tracer(tracerName),
		newID:           uuid.New,
		readAttempts:    DefaultReadAttempts,
		readBackoff:     DefaultReadBackoff,
		maxPayloadBytes: DefaultMaxPayloadBytes,
		publishTimeout:  DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register appends a record binding the subject, action and the caller's
// certificate fingerprint. A repeat of the same triple is a Conflict; it is
// never retried.
func (s *Service) Register(ctx context.Context, p Principal, req RegisterRequest) (rec *trail.Record, err error) {
	ctx, span := s.tracer.Start(ctx, "engine.Register")
	defer func() { endSpan(span, err) }()

	id, err := s.authenticateAndAuthorize(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := trail.ValidateSubjectID(req.SubjectID); err != nil {
		return nil, err
	}
	action, err := trail.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	payload, err := s.validatePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	digest := s.binder.Bind(req.SubjectID, string(action), id.Fingerprint)
	span.SetAttributes(attribute.String("trail.action", string(action)), attribute.String("trail.digest", digest))

	start := time.Now()
	stored, err := s.store.Insert(ctx, trail.Record{
		ID:                s.newID(),
		SubjectID:         req.SubjectID,
		Action:            action,
		CallerFingerprint: id.Fingerprint,
		Digest:            digest,
		Payload:           payload,
		AuthorID:          p.CallerID,
	})
	s.metrics.ObserveStoreLatency("insert", msSince(start))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			s.metrics.IncInsertConflicts()
			s.logWarn(ctx, "duplicate trail record rejected", "digest", digest, "caller_id", p.CallerID)
			return nil, dErrors.New(dErrors.CodeConflict, "Log with this hash already exists")
		case dErrors.HasCode(err, dErrors.CodeValidation):
			return nil, err
		default:
			s.logError(ctx, "trail insert failed", err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store record")
		}
	}

	s.metrics.IncRecordsInserted()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "trail record stored",
			"record_id", stored.ID.String(),
			"action", string(stored.Action),
			"caller_id", p.CallerID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.publish(ctx, *stored)
	return stored, nil
}

// Verify recomputes the digest for the expected triple and checks it against
// the stored record. Absence is NotFound; a mismatch is Valid=false.
func (s *Service) Verify(ctx context.Context, p Principal, req VerifyRequest) (res *VerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "engine.Verify")
	defer func() { endSpan(span, err) }()

	id, err := s.authenticateAndAuthorize(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := trail.ValidateSubjectID(req.SubjectID); err != nil {
		return nil, err
	}
	action, err := trail.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}

	digest := s.binder.Bind(req.SubjectID, string(action), id.Fingerprint)
	if err := hashbind.ValidateDigest(digest); err != nil {
		return nil, err
	}

	stored, err := withReadRetry(ctx, s.readAttempts, s.readBackoff, func(ctx context.Context) (*trail.Record, error) {
		return s.store.FindByDigest(ctx, digest)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncVerification("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "Log not found")
		}
		s.logError(ctx, "trail lookup failed", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up record")
	}

	valid := s.binder.Verify(stored.Fields(), req.SubjectID, string(action), id.Fingerprint)
	if valid {
		s.metrics.IncVerification("valid")
	} else {
		s.metrics.IncVerification("invalid")
		s.logWarn(ctx, "trail record failed verification", "record_id", stored.ID.String(), "digest", digest)
	}
	span.SetAttributes(attribute.Bool("trail.valid", valid))
	return &VerifyResult{Valid: valid, Digest: stored.Digest, Record: stored}, nil
}

func (s *Service) BySubject(ctx context.Context, p Principal, subjectID string) ([]trail.Record, error) {
	return s.read(ctx, p, "find_by_subject",
		func() error { return trail.ValidateSubjectID(subjectID) },
		func(ctx context.Context) ([]trail.Record, error) {
			return s.store.FindBySubject(ctx, subjectID)
		})
}

func (s *Service) ByAction(ctx context.Context, p Principal, rawAction string) ([]trail.Record, error) {
	var action trail.Action
	return s.read(ctx, p, "find_by_action",
		func() (err error) {
			action, err = trail.ParseAction(rawAction)
			return err
		},
		func(ctx context.Context) ([]trail.Record, error) {
			return s.store.FindByAction(ctx, action)
		})
}

// ByFingerprint accepts any common fingerprint spelling (colons, upper case).
func (s *Service) ByFingerprint(ctx context.Context, p Principal, fingerprint string) ([]trail.Record, error) {
	var normalized string
	return s.read(ctx, p, "find_by_fingerprint",
		func() (err error) {
			if normalized, err = identity.Normalize(fingerprint); err != nil {
				return dErrors.New(dErrors.CodeValidation, "fingerprint must be a SHA-256 certificate fingerprint")
			}
			return nil
		},
		func(ctx context.Context) ([]trail.Record, error) {
			return s.store.FindByFingerprint(ctx, normalized)
		})
}

// All returns one page of the trail in insertion order.
func (s *Service) All(ctx context.Context, p Principal, limit, offset int) (*ListResult, error) {
	records, err := s.read(ctx, p, "list_all",
		func() error {
			if limit < 0 || limit > trail.MaxPageLimit {
				return dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
			}
			if offset < 0 {
				return dErrors.New(dErrors.CodeValidation, "offset must not be negative")
			}
			return nil
		},
		s.store.All)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = trail.DefaultPageLimit
	}
	return &ListResult{
		Records: trail.Page(records, limit, offset),
		Total:   len(records),
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// RegisterCaller grants trail access to serviceID. p.CallerID must be the
// controller.
func (s *Service) RegisterCaller(ctx context.Context, p Principal, serviceID string) (caller *authz.RegisteredCaller, err error) {
	ctx, span := s.tracer.Start(ctx, "engine.RegisterCaller")
	defer func() { endSpan(span, err) }()

	if _, err := authenticate(p); err != nil {
		return nil, err
	}
	return s.gate.Register(ctx, p.CallerID, serviceID)
}

func (s *Service) ListCallers(ctx context.Context, p Principal) ([]authz.RegisteredCaller, error) {
	if _, err := authenticate(p); err != nil {
		return nil, err
	}
	return s.gate.List(ctx, p.CallerID)
}

// read authorizes before validate runs, so an unregistered caller learns
// nothing about which arguments would have been accepted.
func (s *Service) read(ctx context.Context, p Principal, op string, validate func() error, fn func(context.Context) ([]trail.Record, error)) (records []trail.Record, err error) {
	ctx, span := s.tracer.Start(ctx, "engine."+op)
	defer func() { endSpan(span, err) }()

	if _, err := s.authenticateAndAuthorize(ctx, p); err != nil {
		return nil, err
	}
	if err := validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	records, err = withReadRetry(ctx, s.readAttempts, s.readBackoff, fn)
	s.metrics.ObserveStoreLatency(op, msSince(start))
	if err != nil {
		s.logError(ctx, "trail read failed", err, "operation", op)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read records")
	}
	span.SetAttributes(attribute.Int("trail.records", len(records)))
	return records, nil
}

func (s *Service) authenticateAndAuthorize(ctx context.Context, p Principal) (*identity.ClientIdentity, error) {
	id, err := authenticate(p)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, p.CallerID); err != nil {
		return nil, err
	}
	return id, nil
}

func authenticate(p Principal) (*identity.ClientIdentity, error) {
	if p.Identity == nil || p.Identity.Fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeCertificateRequired, "Client certificate required")
	}
	return p.Identity, nil
}

func (s *Service) validatePayload(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}
	if s.maxPayloadBytes > 0 && len(payload) > s.maxPayloadBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "data exceeds the maximum payload size")
	}
	if !json.Valid(payload) {
		return nil, dErrors.New(dErrors.CodeValidation, "data must be valid JSON")
	}
	return payload, nil
}

// publish detaches from the request context: the record is already committed,
// so a client hanging up must not cancel its announcement.
func (s *Service) publish(ctx context.Context, rec trail.Record) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, rec); err != nil {
		s.metrics.IncPublishFailures()
		s.logError(ctx, "failed to publish trail record", err, "record_id", rec.ID.String())
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	s.logger.WarnContext(ctx, msg, args...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "error", err, "request_id", requestcontext.RequestID(ctx))
	s.logger.ErrorContext(ctx, msg, args...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
