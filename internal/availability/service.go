package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/observability/metrics"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

var tracer = otel.Tracer("clinicdesk.internal.availability")

// ErrAvailabilityUnknown indicates the check could not be completed. The
// caller must treat the slot as unverified, never as free: availability
// fails closed.
var ErrAvailabilityUnknown = errors.New("availability: could not verify availability")

// Catalog resolves procedures for duration aggregation.
type Catalog interface {
	ListByOrg(ctx context.Context, orgID string) ([]catalog.Procedure, error)
	Resolve(ctx context.Context, orgID string, ids []uuid.UUID) ([]catalog.Procedure, error)
}

// BookingSource loads existing bookings around a candidate interval.
type BookingSource interface {
	ListForProviderWindow(ctx context.Context, orgID string, providerID uuid.UUID, from, to time.Time) ([]schedule.Booking, error)
}

// Request describes one candidate slot to verify.
type Request struct {
	OrgID            string
	ProviderID       uuid.UUID
	StartTime        time.Time
	ProcedureIDs     []uuid.UUID
	ExcludeBookingID uuid.UUID
}

// Decision is the outcome of an availability check. A conflict is a normal
// outcome, not an error.
type Decision struct {
	Available            bool            `json:"available"`
	ConflictMessage      string          `json:"conflict_message,omitempty"`
	ConflictingBookingID uuid.UUID       `json:"conflicting_booking_id,omitempty"`
	Totals               schedule.Totals `json:"totals"`
}

// Service answers "is this slot free" by combining the procedure catalog,
// the booking store, and the pure conflict checker. Read-only.
type Service struct {
	catalog  Catalog
	bookings BookingSource
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

// NewService constructs an availability service. The catalog is the explicit
// read-through cache owned by the caller; commits elsewhere must invalidate it.
func NewService(cat Catalog, bookings BookingSource, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if cat == nil || bookings == nil {
		panic("availability: catalog and booking source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{catalog: cat, bookings: bookings, metrics: m, logger: logger}
}

// CheckAvailability verifies the candidate slot against the provider's
// calendar. Unknown procedure ids surface catalog.ErrUnknownProcedure; any
// store or catalog failure surfaces ErrAvailabilityUnknown.
func (s *Service) CheckAvailability(ctx context.Context, req Request) (Decision, error) {
	ctx, span := tracer.Start(ctx, "availability.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicdesk.org_id", req.OrgID),
		attribute.String("clinicdesk.provider_id", req.ProviderID.String()),
	)
	start := time.Now()

	if len(req.ProcedureIDs) == 0 {
		return Decision{}, fmt.Errorf("availability: no procedures selected")
	}

	procs, err := s.catalog.Resolve(ctx, req.OrgID, req.ProcedureIDs)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProcedure) {
			return Decision{}, err
		}
		span.RecordError(err)
		s.metrics.ObserveCheck("error", time.Since(start).Seconds())
		return Decision{}, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}
	totals := schedule.Aggregate(procs)
	if totals.DurationMinutes <= 0 {
		return Decision{}, fmt.Errorf("availability: selected procedures have zero duration")
	}

	// Fetch only the window an existing booking could overlap from: nothing
	// starting earlier than the longest procedure's length before the
	// candidate can still reach into it.
	maxDur, err := s.maxProcedureDuration(ctx, req.OrgID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCheck("error", time.Since(start).Seconds())
		return Decision{}, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}
	from := req.StartTime.Add(-maxDur)
	to := req.StartTime.Add(time.Duration(totals.DurationMinutes) * time.Minute)

	existing, err := s.bookings.ListForProviderWindow(ctx, req.OrgID, req.ProviderID, from, to)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCheck("error", time.Since(start).Seconds())
		return Decision{}, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}

	result := schedule.Conflicts(schedule.CandidateSlot{
		ProviderID:       req.ProviderID,
		StartTime:        req.StartTime,
		DurationMinutes:  totals.DurationMinutes,
		ExcludeBookingID: req.ExcludeBookingID,
	}, existing)

	if result.HasConflict {
		s.metrics.ObserveCheck("conflict", time.Since(start).Seconds())
		s.logger.Debug("availability check found conflict",
			"org_id", req.OrgID,
			"provider_id", req.ProviderID,
			"conflicting_booking_id", result.ConflictingBookingID,
		)
		return Decision{
			ConflictMessage:      result.Message,
			ConflictingBookingID: result.ConflictingBookingID,
			Totals:               totals,
		}, nil
	}

	s.metrics.ObserveCheck("available", time.Since(start).Seconds())
	return Decision{Available: true, Totals: totals}, nil
}

// maxProcedureDuration returns the longest procedure duration in the org's
// catalog, bounding how far back the booking fetch window must reach.
func (s *Service) maxProcedureDuration(ctx context.Context, orgID string) (time.Duration, error) {
	procs, err := s.catalog.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}
	maxMins := 0
	for _, p := range procs {
		total := p.DurationMinutes
		if total > maxMins {
			maxMins = total
		}
	}
	if maxMins == 0 {
		maxMins = 60
	}
	return time.Duration(maxMins) * time.Minute, nil
}
