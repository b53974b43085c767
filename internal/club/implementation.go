// internal/club/implementation.go
package club

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"clubledger/internal/store"
)

// service implements the Service interface.
type service struct {
	store store.Store
	guard *lifecycle
	locks *memberLocks

	// registryMu serializes member-number allocation and the last-name
	// uniqueness check across all callers.
	registryMu sync.Mutex

	now       func() time.Time
	log       zerolog.Logger
	tracer    trace.Tracer
	ops       metric.Int64Counter
	deposited metric.Float64Counter
}

// NewService creates the ledger service on top of the given storage
// collaborator. The store handle is owned by the service from here on
// and is released by Close.
func NewService(st store.Store, log zerolog.Logger) Service {
	meter := otel.Meter("clubledger/club")
	ops, err := meter.Int64Counter("club.operations",
		metric.WithDescription("ledger operations by name and outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("operations counter unavailable")
	}
	deposited, err := meter.Float64Counter("club.deposited",
		metric.WithDescription("sum of accepted deposit amounts"))
	if err != nil {
		log.Warn().Err(err).Msg("deposited counter unavailable")
	}

	return &service{
		store:     st,
		guard:     &lifecycle{},
		locks:     newMemberLocks(),
		now:       time.Now,
		log:       log,
		tracer:    otel.Tracer("clubledger/club"),
		ops:       ops,
		deposited: deposited,
	}
}

// Initialize flips the lifecycle guard. It has no other side effects.
func (s *service) Initialize(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "club.initialize")
	defer span.End()

	err := s.guard.initialize()
	s.count(ctx, "initialize", err)
	if err != nil {
		return err
	}
	s.log.Info().Msg("ledger initialized")
	return nil
}

func (s *service) Close() error {
	return s.store.Close()
}

func (s *service) count(ctx context.Context, op string, err error) {
	if s.ops == nil {
		return
	}
	s.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("ok", err == nil),
	))
}
