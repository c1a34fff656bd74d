package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// exclusionViolation is the SQLSTATE raised when the bookings_no_overlap
// constraint rejects a write.
const exclusionViolation = "23P01"

// DB abstracts the pgx pool for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists bookings. Every write re-validates non-overlap inside its
// transaction; the database exclusion constraint is the final guarantee when
// two sessions race past the advisory pre-check.
type Store struct {
	db DB
}

// NewStore creates a booking store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Patch carries a partial booking update. Nil fields are left untouched.
// ProcedureIDs, when set, must come with the re-derived DurationMinutes.
type Patch struct {
	StartTime       *time.Time
	Status          *Status
	Notes           *string
	ProcedureIDs    []uuid.UUID
	DurationMinutes int
}

// Create inserts a booking and its procedure rows.
func (s *Store) Create(ctx context.Context, b *Booking) error {
	if len(b.ProcedureIDs) == 0 {
		return fmt.Errorf("schedule: create booking: no procedures selected")
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusScheduled
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.StartTime = b.StartTime.UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: create booking: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockOverlapping(ctx, tx, b.OrgID, b.ProviderID, uuid.Nil, b.StartTime, b.EndTime()); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, org_id, patient_id, provider_id, procedure_id, start_time, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.OrgID, b.PatientID, b.ProviderID, LegacyProcedureID(b.ProcedureIDs),
		b.StartTime, b.DurationMinutes, string(b.Status), b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr("create booking", err)
	}
	if err := insertProcedures(ctx, tx, b.ID, b.ProcedureIDs); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapWriteErr("create booking", err)
	}
	return nil
}

// Get returns a booking scoped to the org, including its procedure ids.
func (s *Store) Get(ctx context.Context, orgID string, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := s.db.QueryRow(ctx, `
		SELECT id, org_id, patient_id, provider_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM bookings
		WHERE org_id = $1 AND id = $2`, orgID, id).
		Scan(&b.ID, &b.OrgID, &b.PatientID, &b.ProviderID, &b.StartTime, &b.DurationMinutes, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: get booking: %w", err)
	}
	if err := s.loadProcedures(ctx, []*Booking{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListForProviderWindow returns the provider's non-cancelled bookings whose
// intervals intersect [from, to), ordered by start time.
func (s *Store) ListForProviderWindow(ctx context.Context, orgID string, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, patient_id, provider_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM bookings
		WHERE org_id = $1 AND provider_id = $2 AND status <> 'cancelled'
		  AND start_time < $4
		  AND start_time + make_interval(mins => duration_minutes) > $3
		ORDER BY start_time ASC`, orgID, providerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("schedule: list provider window: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.OrgID, &b.PatientID, &b.ProviderID, &b.StartTime, &b.DurationMinutes, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("schedule: scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list provider window: %w", err)
	}

	refs := make([]*Booking, len(bookings))
	for i := range bookings {
		refs[i] = &bookings[i]
	}
	if err := s.loadProcedures(ctx, refs); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Update applies a partial patch to a booking inside one transaction.
// Time or procedure changes re-validate non-overlap against the provider's
// calendar before writing; status changes must be legal lifecycle moves.
func (s *Store) Update(ctx context.Context, orgID string, id uuid.UUID, patch Patch) (*Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: update booking: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b Booking
	err = tx.QueryRow(ctx, `
		SELECT id, org_id, patient_id, provider_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM bookings
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`, orgID, id).
		Scan(&b.ID, &b.OrgID, &b.PatientID, &b.ProviderID, &b.StartTime, &b.DurationMinutes, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: update booking: load: %w", err)
	}

	if patch.Status != nil {
		if !CanTransition(b.Status, *patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, *patch.Status)
		}
		b.Status = *patch.Status
	}
	if patch.StartTime != nil {
		b.StartTime = patch.StartTime.UTC()
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}
	proceduresChanged := len(patch.ProcedureIDs) > 0
	if proceduresChanged {
		if patch.DurationMinutes <= 0 {
			return nil, fmt.Errorf("schedule: update booking: procedure change without duration")
		}
		b.ProcedureIDs = patch.ProcedureIDs
		b.DurationMinutes = patch.DurationMinutes
	}

	intervalChanged := patch.StartTime != nil || proceduresChanged
	if intervalChanged && b.Active() {
		if err := s.lockOverlapping(ctx, tx, b.OrgID, b.ProviderID, b.ID, b.StartTime, b.EndTime()); err != nil {
			return nil, err
		}
	}

	var legacyID any
	if proceduresChanged {
		legacyID = LegacyProcedureID(b.ProcedureIDs)
	}
	b.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $1, duration_minutes = $2, status = $3, notes = $4, procedure_id = COALESCE($5, procedure_id), updated_at = $6
		WHERE org_id = $7 AND id = $8`,
		b.StartTime, b.DurationMinutes, string(b.Status), b.Notes, legacyID,
		b.UpdatedAt, orgID, id,
	)
	if err != nil {
		return nil, wrapWriteErr("update booking", err)
	}

	if proceduresChanged {
		if _, err := tx.Exec(ctx, `DELETE FROM booking_procedures WHERE booking_id = $1`, id); err != nil {
			return nil, fmt.Errorf("schedule: update booking: clear procedures: %w", err)
		}
		if err := insertProcedures(ctx, tx, id, b.ProcedureIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapWriteErr("update booking", err)
	}
	if !proceduresChanged {
		if err := s.loadProcedures(ctx, []*Booking{&b}); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// lockOverlapping locks and detects active bookings overlapping [start, end)
// for the provider. Finding one means the slot was taken between the advisory
// check and this commit.
func (s *Store) lockOverlapping(ctx context.Context, tx pgx.Tx, orgID string, providerID, excludeID uuid.UUID, start, end time.Time) error {
	var conflictID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM bookings
		WHERE org_id = $1 AND provider_id = $2 AND id <> $3 AND status <> 'cancelled'
		  AND start_time < $5
		  AND start_time + make_interval(mins => duration_minutes) > $4
		ORDER BY start_time ASC
		LIMIT 1
		FOR UPDATE`, orgID, providerID, excludeID, start.UTC(), end.UTC()).Scan(&conflictID)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("schedule: overlap recheck: %w", err)
	}
	return fmt.Errorf("%w: booking %s", ErrCommitConflict, conflictID)
}

func insertProcedures(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, ids []uuid.UUID) error {
	for i, pid := range ids {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_procedures (booking_id, procedure_id, position)
			VALUES ($1, $2, $3)`, bookingID, pid, i); err != nil {
			return fmt.Errorf("schedule: insert booking procedure: %w", err)
		}
	}
	return nil
}

// loadProcedures fills ProcedureIDs for the given bookings in position order.
func (s *Store) loadProcedures(ctx context.Context, bookings []*Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Booking, len(bookings))
	ids := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT booking_id, procedure_id
		FROM booking_procedures
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, position ASC`, ids)
	if err != nil {
		return fmt.Errorf("schedule: load booking procedures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, procID uuid.UUID
		if err := rows.Scan(&bookingID, &procID); err != nil {
			return fmt.Errorf("schedule: scan booking procedure: %w", err)
		}
		if b, ok := byID[bookingID]; ok {
			b.ProcedureIDs = append(b.ProcedureIDs, procID)
		}
	}
	return rows.Err()
}

func wrapWriteErr(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return fmt.Errorf("%w: %s", ErrCommitConflict, action)
	}
	return fmt.Errorf("schedule: %s: %w", action, err)
}
