package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// PostgresStore persists appointments in PostgreSQL.
//
// The schema carries a partial unique index on (organization_id, start_time)
// over rows whose status still blocks the slot (see migrations). That index is
// the concurrency backstop the application-level conflict guard relies on:
// two racing commits cannot both win the same start time.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed appointment store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const insertSQL = `
	INSERT INTO appointments (
		id, organization_id, country, request_id, attendee_id, agent_id,
		appointment_type, status, start_time, end_time,
		instructions, cancel_reason, rescheduled_from, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

func insertArgs(a *Appointment) []any {
	return []any{
		uuid.UUID(a.ID), uuid.UUID(a.Organization), a.Country.String(),
		nullUUID(uuid.UUID(a.Request)), nullUUID(uuid.UUID(a.Attendee)), nullUUID(uuid.UUID(a.AssignedAgent)),
		a.Type.String(), a.Status.String(), a.Start.UTC(), a.End.UTC(),
		a.Instructions, a.CancelReason, a.RescheduledFrom, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	}
}

func (s *PostgresStore) Create(ctx context.Context, a *Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is required")
	}
	if _, err := s.pool.Exec(ctx, insertSQL, insertArgs(a)...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active appointment already starts at %s: %w",
				a.Start.Format(time.RFC3339), sentinel.ErrConflict)
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

const selectSQL = `
	SELECT id, organization_id, country, request_id, attendee_id, agent_id,
	       appointment_type, status, start_time, end_time,
	       instructions, cancel_reason, rescheduled_from, created_at, updated_at
	FROM appointments`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                          Appointment
		apptID, orgID              uuid.UUID
		country, typ, status       string
		reqID, attendeeID, agentID *uuid.UUID
	)
	err := row.Scan(&apptID, &orgID, &country, &reqID, &attendeeID, &agentID,
		&typ, &status, &a.Start, &a.End,
		&a.Instructions, &a.CancelReason, &a.RescheduledFrom, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = id.AppointmentID(apptID)
	a.Organization = id.OrganizationID(orgID)
	a.Country = id.CountryCode(country)
	a.Type = Type(typ)
	a.Status = Status(status)
	if reqID != nil {
		a.Request = id.ServiceRequestID(*reqID)
	}
	if attendeeID != nil {
		a.Attendee = id.ActorID(*attendeeID)
	}
	if agentID != nil {
		a.AssignedAgent = id.ActorID(*agentID)
	}
	return &a, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, apptID id.AppointmentID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, selectSQL+` WHERE id = $1`, uuid.UUID(apptID))
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", apptID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListOverlapping(ctx context.Context, org id.OrganizationID, from, to time.Time) ([]*Appointment, error) {
	rows, err := s.pool.Query(ctx,
		selectSQL+` WHERE organization_id = $1 AND start_time < $2 AND end_time > $3 ORDER BY start_time`,
		uuid.UUID(org), to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("list overlapping appointments: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByAttendee(ctx context.Context, attendee id.ActorID) ([]*Appointment, error) {
	rows, err := s.pool.Query(ctx,
		selectSQL+` WHERE attendee_id = $1 ORDER BY start_time`, uuid.UUID(attendee))
	if err != nil {
		return nil, fmt.Errorf("list appointments by attendee: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByRequest(ctx context.Context, request id.ServiceRequestID) ([]*Appointment, error) {
	rows, err := s.pool.Query(ctx,
		selectSQL+` WHERE request_id = $1 ORDER BY start_time`, uuid.UUID(request))
	if err != nil {
		return nil, fmt.Errorf("list appointments by request: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, a *Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is required")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2, agent_id = $3, instructions = $4, cancel_reason = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(a.ID), a.Status.String(), nullUUID(uuid.UUID(a.AssignedAgent)),
		a.Instructions, a.CancelReason, a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", a.ID, sentinel.ErrNotFound)
	}
	return nil
}

// Reschedule commits the supersede-and-replace pair in one transaction, so a
// crash between the two effects is never observable.
func (s *PostgresStore) Reschedule(ctx context.Context, old *Appointment, replacement *Appointment) error {
	if old == nil || replacement == nil {
		return fmt.Errorf("both appointments are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(old.ID), old.Status.String(), old.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("supersede appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", old.ID, sentinel.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, insertSQL, insertArgs(replacement)...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active appointment already starts at %s: %w",
				replacement.Start.Format(time.RFC3339), sentinel.ErrConflict)
		}
		return fmt.Errorf("create replacement appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}
	return nil
}

func nullUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
