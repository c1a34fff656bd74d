package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/events"
	"github.com/clinicdesk/clinicdesk/internal/observability/metrics"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

var scheduleTracer = otel.Tracer("clinicdesk.internal.schedule")

// ProcedureResolver maps procedure ids to catalog entries.
type ProcedureResolver interface {
	Resolve(ctx context.Context, orgID string, ids []uuid.UUID) ([]catalog.Procedure, error)
}

// EventSink records calendar events for delivery. Optional.
type EventSink interface {
	Insert(ctx context.Context, orgID string, eventType string, payload any) (uuid.UUID, error)
}

// Service owns booking writes: it derives durations from the catalog,
// persists through the store, and records calendar events.
type Service struct {
	store    *Store
	resolver ProcedureResolver
	outbox   EventSink
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

// NewService constructs a booking service.
func NewService(store *Store, resolver ProcedureResolver, outbox EventSink, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if store == nil || resolver == nil {
		panic("schedule: store and resolver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, resolver: resolver, outbox: outbox, metrics: m, logger: logger}
}

// CreateInput describes a new booking.
type CreateInput struct {
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	ProcedureIDs []uuid.UUID
	StartTime    time.Time
	Notes        string
}

// UpdateInput is a partial booking mutation; nil fields are untouched.
type UpdateInput struct {
	StartTime    *time.Time
	Status       *Status
	Notes        *string
	ProcedureIDs []uuid.UUID
}

// Create books a new encounter in Scheduled state.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*Booking, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.create")
	defer span.End()
	span.SetAttributes(attribute.String("clinicdesk.org_id", orgID))

	if len(input.ProcedureIDs) == 0 {
		return nil, fmt.Errorf("schedule: create: at least one procedure required")
	}
	procs, err := s.resolver.Resolve(ctx, orgID, input.ProcedureIDs)
	if err != nil {
		return nil, err
	}
	totals := Aggregate(procs)
	if totals.DurationMinutes <= 0 {
		return nil, fmt.Errorf("schedule: create: zero total duration")
	}

	b := &Booking{
		OrgID:           orgID,
		PatientID:       input.PatientID,
		ProviderID:      input.ProviderID,
		ProcedureIDs:    input.ProcedureIDs,
		StartTime:       input.StartTime,
		DurationMinutes: totals.DurationMinutes,
		Status:          StatusScheduled,
		Notes:           input.Notes,
	}
	if err := s.store.Create(ctx, b); err != nil {
		if errors.Is(err, ErrCommitConflict) {
			s.metrics.ObserveCommitConflict()
		}
		span.RecordError(err)
		return nil, err
	}

	s.emit(ctx, orgID, events.TypeBookingCreated, events.BookingCreatedV1{
		EventID:         uuid.NewString(),
		OrgID:           orgID,
		BookingID:       b.ID.String(),
		ProviderID:      b.ProviderID.String(),
		PatientID:       b.PatientID.String(),
		StartTime:       b.StartTime,
		DurationMinutes: b.DurationMinutes,
		CreatedAt:       b.CreatedAt,
	})
	s.logger.Info("booking created",
		"org_id", orgID,
		"booking_id", b.ID,
		"provider_id", b.ProviderID,
		"duration_minutes", b.DurationMinutes,
	)
	return b, nil
}

// Update applies a partial mutation, re-deriving duration when the procedure
// selection changes.
func (s *Service) Update(ctx context.Context, orgID string, id uuid.UUID, input UpdateInput) (*Booking, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicdesk.org_id", orgID),
		attribute.String("clinicdesk.booking_id", id.String()),
	)

	before, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	patch := Patch{
		StartTime: input.StartTime,
		Status:    input.Status,
		Notes:     input.Notes,
	}
	if len(input.ProcedureIDs) > 0 {
		procs, err := s.resolver.Resolve(ctx, orgID, input.ProcedureIDs)
		if err != nil {
			return nil, err
		}
		totals := Aggregate(procs)
		if totals.DurationMinutes <= 0 {
			return nil, fmt.Errorf("schedule: update: zero total duration")
		}
		patch.ProcedureIDs = input.ProcedureIDs
		patch.DurationMinutes = totals.DurationMinutes
	}

	updated, err := s.store.Update(ctx, orgID, id, patch)
	if err != nil {
		if errors.Is(err, ErrCommitConflict) {
			s.metrics.ObserveCommitConflict()
		}
		span.RecordError(err)
		return nil, err
	}

	if input.StartTime != nil && !before.StartTime.Equal(updated.StartTime) {
		s.emit(ctx, orgID, events.TypeBookingRescheduled, events.BookingRescheduledV1{
			EventID:         uuid.NewString(),
			OrgID:           orgID,
			BookingID:       id.String(),
			ProviderID:      updated.ProviderID.String(),
			OldStartTime:    before.StartTime,
			NewStartTime:    updated.StartTime,
			DurationMinutes: updated.DurationMinutes,
			OccurredAt:      updated.UpdatedAt,
		})
	}
	if input.Status != nil && before.Status != updated.Status {
		s.emit(ctx, orgID, events.TypeBookingStatusChanged, events.BookingStatusChangedV1{
			EventID:    uuid.NewString(),
			OrgID:      orgID,
			BookingID:  id.String(),
			ProviderID: updated.ProviderID.String(),
			OldStatus:  string(before.Status),
			NewStatus:  string(updated.Status),
			OccurredAt: updated.UpdatedAt,
		})
	}

	s.logger.Info("booking updated", "org_id", orgID, "booking_id", id)
	return updated, nil
}

// Get returns a booking scoped to the org.
func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (*Booking, error) {
	return s.store.Get(ctx, orgID, id)
}

// ListForProviderWindow exposes the store's windowed read.
func (s *Service) ListForProviderWindow(ctx context.Context, orgID string, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	return s.store.ListForProviderWindow(ctx, orgID, providerID, from, to)
}

func (s *Service) emit(ctx context.Context, orgID, eventType string, payload any) {
	if s.outbox == nil {
		return
	}
	if _, err := s.outbox.Insert(ctx, orgID, eventType, payload); err != nil {
		// The booking write already committed; a lost refresh event is
		// logged, not surfaced.
		s.logger.Error("failed to record calendar event", "org_id", orgID, "type", eventType, "error", err)
	}
}
