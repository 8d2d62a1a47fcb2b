// Package authz decides whether a caller may use the audit trail. The
// controller is always authorized; anyone else must be registered by it.
package authz

import (
	"context"
	"errors"
	"log/slog"
	"unicode"

	"certtrail/internal/platform/metrics"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/platform/sentinel"
	"certtrail/pkg/requestcontext"
)

const maxCallerIDLength = 128

// Gate answers authorization questions against a fixed controller and a
// store of registered callers.
type Gate struct {
	controller string
	store      CallerStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New builds a gate. The controller identity is fixed for the gate's lifetime.
func New(controller string, store CallerStore, opts ...Option) (*Gate, error) {
	if controller == "" {
		return nil, errors.New("controller identity is required")
	}
	if store == nil {
		return nil, errors.New("caller store is required")
	}
	g := &Gate{controller: controller, store: store}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Controller returns the distinguished controller identity.
func (g *Gate) Controller() string {
	return g.controller
}

func (g *Gate) IsController(callerID string) bool {
	return callerID != "" && callerID == g.controller
}

// Authorize returns nil when callerID is the controller or a registered
// caller, Unauthorized otherwise.
func (g *Gate) Authorize(ctx context.Context, callerID string) error {
	if callerID == "" {
		g.deny(ctx, callerID, "anonymous caller")
		return dErrors.New(dErrors.CodeUnauthorized, "Unauthorized caller")
	}
	if g.IsController(callerID) {
		return nil
	}
	ok, err := g.store.Exists(ctx, callerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up caller")
	}
	if !ok {
		g.deny(ctx, callerID, "caller not registered")
		return dErrors.New(dErrors.CodeUnauthorized, "Unauthorized caller")
	}
	return nil
}

// Register adds newCallerID to the registered set. Only the controller may
// register; the check happens before any lookup.
func (g *Gate) Register(ctx context.Context, requesterID, newCallerID string) (*RegisteredCaller, error) {
	if !g.IsController(requesterID) {
		g.deny(ctx, requesterID, "non-controller attempted caller registration")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Only controller can register services")
	}
	if err := ValidateCallerID(newCallerID); err != nil {
		return nil, err
	}

	caller := RegisteredCaller{ID: newCallerID, RegisteredAt: requestcontext.Now(ctx).UTC()}
	if err := g.store.CreateIfAbsent(ctx, caller); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Service already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register caller")
	}

	g.metrics.IncCallersRegistered()
	if g.logger != nil {
		g.logger.InfoContext(ctx, "caller registered",
			"caller_id", newCallerID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return &caller, nil
}

// Bootstrap registers serviceID on behalf of the controller. An existing
// registration is not an error.
func (g *Gate) Bootstrap(ctx context.Context, serviceID string) error {
	if serviceID == "" {
		return nil
	}
	_, err := g.Register(ctx, g.controller, serviceID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		return err
	}
	return nil
}

// List returns the registered callers. Controller only.
func (g *Gate) List(ctx context.Context, requesterID string) ([]RegisteredCaller, error) {
	if !g.IsController(requesterID) {
		g.deny(ctx, requesterID, "non-controller attempted caller listing")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Only controller can list services")
	}
	callers, err := g.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list callers")
	}
	return callers, nil
}

// ValidateCallerID rejects empty, oversized or non-printable identifiers.
func ValidateCallerID(id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeValidation, "serviceId is required")
	}
	if len(id) > maxCallerIDLength {
		return dErrors.New(dErrors.CodeValidation, "serviceId is too long")
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return dErrors.New(dErrors.CodeValidation, "serviceId contains invalid characters")
		}
	}
	return nil
}

func (g *Gate) deny(ctx context.Context, callerID, reason string) {
	g.metrics.IncAuthorizationDenials()
	if g.logger != nil {
		g.logger.WarnContext(ctx, "authorization denied",
			"caller_id", callerID,
			"reason", reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
