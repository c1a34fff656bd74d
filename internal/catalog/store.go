package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads the procedure catalog from Postgres.
type Store struct {
	db DB
}

// NewStore creates a catalog store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// ListByOrg returns the full catalog for an org ordered by name.
func (s *Store) ListByOrg(ctx context.Context, orgID string) ([]Procedure, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, name, duration_minutes, price_cents
		FROM procedures
		WHERE org_id = $1
		ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list by org: %w", err)
	}
	defer rows.Close()
	return scanProcedures(rows)
}

// Get returns a single procedure scoped to the org.
func (s *Store) Get(ctx context.Context, orgID string, id uuid.UUID) (*Procedure, error) {
	var p Procedure
	err := s.db.QueryRow(ctx, `
		SELECT id, org_id, name, duration_minutes, price_cents
		FROM procedures
		WHERE org_id = $1 AND id = $2`, orgID, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.DurationMinutes, &p.PriceCents)
	if err == pgx.ErrNoRows {
		return nil, ErrUnknownProcedure
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get procedure: %w", err)
	}
	return &p, nil
}

func scanProcedures(rows pgx.Rows) ([]Procedure, error) {
	var procs []Procedure
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.DurationMinutes, &p.PriceCents); err != nil {
			return nil, fmt.Errorf("catalog: scan procedure: %w", err)
		}
		procs = append(procs, p)
	}
	return procs, rows.Err()
}
