// Package directory resolves patients and providers for booking. It is
// read-only; account management lives elsewhere.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/booking/internal/booking"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) Patient(ctx context.Context, id uuid.UUID) (*booking.Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, contact, NULL::text, active
		FROM patients
		WHERE id = $1
	`, id)
	return scanParty(row, booking.ErrPatientNotFound)
}

func (d *PgDirectory) Provider(ctx context.Context, id uuid.UUID) (*booking.Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, contact, specialty, active
		FROM providers
		WHERE id = $1
	`, id)
	return scanParty(row, booking.ErrProviderNotFound)
}

func scanParty(row pgx.Row, notFound error) (*booking.Party, error) {
	var p booking.Party
	err := row.Scan(&p.ID, &p.Name, &p.Contact, &p.Specialty, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("%w: scan directory entry: %v", booking.ErrTransient, err)
	}
	return &p, nil
}
