// Package registry is the property registry engine: registration, sale control, purchase,
// splitting and admin governance on top of a ledger.Store. Every mutating call is one store
// transaction; it either commits all of its effects or none.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propertyregistry/internal/governance"
	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

const tracerName = "propertyregistry/internal/registry"

// Service exposes the registry operations. It is safe for concurrent use; all coordination
// happens in the store.
type Service struct {
	store  ledger.Store
	policy governance.Policy
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPolicy replaces the single-signer admin replacement policy.
func WithPolicy(p governance.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithClock sets the clock used to timestamp journal entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service backed by store.
func New(store ledger.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: governance.SingleSigner{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Bootstrap installs the initial admin pair on a fresh ledger. On a ledger that already has
// admins it does nothing and reports false.
func (s *Service) Bootstrap(ctx context.Context, admin1, admin2 types.Account) (bool, error) {
	pair, err := governance.Canonical(admin1, admin2)
	if err != nil {
		return false, err
	}
	installed := false
	err = s.update(ctx, "Bootstrap", pair.Admin1, nil, func(c *txContext) error {
		current, err := c.tx.Admins(ctx)
		if err != nil {
			return err
		}
		if !current.IsZero() {
			c.noop = true
			return nil
		}
		if err := c.tx.SetAdmins(ctx, pair); err != nil {
			return fmt.Errorf("set admins: %w", err)
		}
		installed = true
		return c.journal(types.OpBootstrap, nil, "admin1=%s admin2=%s", pair.Admin1, pair.Admin2)
	})
	return installed, err
}

// txContext carries what an operation needs inside one store transaction.
type txContext struct {
	ctx    context.Context
	tx     ledger.Tx
	gov    *governance.Governance
	caller types.Account
	svc    *Service

	// noop marks a transaction that finished without writing anything.
	noop bool
}

func (c *txContext) journal(op types.Op, propertyID *uint64, format string, args ...any) error {
	entry := types.JournalEntry{
		ID:         c.svc.newID(),
		Op:         op,
		PropertyID: propertyID,
		Actor:      c.caller,
		Detail:     fmt.Sprintf(format, args...),
		At:         c.svc.now().UTC(),
	}
	if err := c.tx.AppendJournal(c.ctx, entry); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// update runs fn in one store transaction with the admin pair loaded into a Governance,
// inside a span, and logs the outcome.
func (s *Service) update(ctx context.Context, op string, caller types.Account, id *uint64, fn func(c *txContext) error) error {
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(
		attribute.String("registry.caller", caller.String()),
	))
	defer span.End()
	if id != nil {
		span.SetAttributes(attribute.Int64("registry.property_id", int64(*id)))
	}

	noop := false
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		pair, err := tx.Admins(ctx)
		if err != nil {
			return fmt.Errorf("load admins: %w", err)
		}
		c := &txContext{
			ctx:    ctx,
			tx:     tx,
			gov:    governance.New(pair, s.policy),
			caller: caller,
			svc:    s,
		}
		err = fn(c)
		noop = c.noop
		return err
	})
	if err == nil && noop {
		span.SetAttributes(attribute.String("registry.outcome", "noop"))
		s.logger.Debug("registry operation skipped", "op", op, "caller", caller.String())
		return nil
	}
	return s.finish(span, op, caller, id, err)
}

// view runs fn against a consistent snapshot inside a span.
func (s *Service) view(ctx context.Context, op string, id *uint64, fn func(tx ledger.ReadTx) error) error {
	ctx, span := s.tracer.Start(ctx, "registry."+op)
	defer span.End()
	if id != nil {
		span.SetAttributes(attribute.Int64("registry.property_id", int64(*id)))
	}
	err := s.store.View(ctx, fn)
	if err != nil {
		err = ledger.Wrap(ledger.StorageFailure, op, err)
		span.SetAttributes(attribute.String("registry.outcome", ledger.KindOf(err).String()))
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) finish(span trace.Span, op string, caller types.Account, id *uint64, err error) error {
	attrs := []any{"op", op, "caller", caller.String()}
	if id != nil {
		attrs = append(attrs, "property_id", *id)
	}
	if err != nil {
		err = ledger.Wrap(ledger.StorageFailure, op, err)
		kind := ledger.KindOf(err)
		span.SetAttributes(attribute.String("registry.outcome", kind.String()))
		span.SetStatus(codes.Error, err.Error())
		if kind == ledger.StorageFailure {
			s.logger.Error("registry operation failed", append(attrs, "error", err)...)
		} else {
			s.logger.Debug("registry operation rejected", append(attrs, "kind", kind.String(), "error", err)...)
		}
		return err
	}
	span.SetAttributes(attribute.String("registry.outcome", "ok"))
	s.logger.Info("registry operation committed", attrs...)
	return nil
}

// loadLive reads a record that is about to be mutated and rejects retired ones.
func loadLive(c *txContext, op string, id uint64) (types.Property, error) {
	p, err := c.tx.Property(c.ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	if p.Retired {
		return types.Property{}, ledger.Retired(op, id)
	}
	return p, nil
}
