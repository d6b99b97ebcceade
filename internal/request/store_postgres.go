package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// PostgresStore persists service requests in PostgreSQL. The workflow history
// is a JSONB column: it is append-only audit data read with its request.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, r *ServiceRequest) error {
	if r == nil {
		return fmt.Errorf("service request is required")
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO service_requests (
			id, organization_id, country, applicant_id, profile_id,
			kind, status, reject_reason, history, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		uuid.UUID(r.ID), uuid.UUID(r.Organization), r.Country.String(),
		uuid.UUID(r.Applicant), uuid.UUID(r.Profile),
		r.Kind.String(), r.Status.String(), r.RejectReason, history,
		r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("service request %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create service request: %w", err)
	}
	return nil
}

const selectSQL = `
	SELECT id, organization_id, country, applicant_id, profile_id,
	       kind, status, reject_reason, history, created_at, updated_at
	FROM service_requests`

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var (
		r                             ServiceRequest
		reqID, orgID, applicant, prof uuid.UUID
		country, kind, status         string
		history                       []byte
	)
	err := row.Scan(&reqID, &orgID, &country, &applicant, &prof,
		&kind, &status, &r.RejectReason, &history, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ID = id.ServiceRequestID(reqID)
	r.Organization = id.OrganizationID(orgID)
	r.Country = id.CountryCode(country)
	r.Applicant = id.ActorID(applicant)
	r.Profile = id.ProfileID(prof)
	r.Kind = Kind(kind)
	r.Status = Status(status)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &r.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reqID id.ServiceRequestID) (*ServiceRequest, error) {
	row := s.pool.QueryRow(ctx, selectSQL+` WHERE id = $1`, uuid.UUID(reqID))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("service request %s: %w", reqID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find service request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicant id.ActorID) ([]*ServiceRequest, error) {
	rows, err := s.pool.Query(ctx,
		selectSQL+` WHERE applicant_id = $1 ORDER BY created_at`, uuid.UUID(applicant))
	if err != nil {
		return nil, fmt.Errorf("list requests by applicant: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, org id.OrganizationID, status Status) ([]*ServiceRequest, error) {
	rows, err := s.pool.Query(ctx,
		selectSQL+` WHERE organization_id = $1 AND status = $2 ORDER BY created_at`,
		uuid.UUID(org), status.String())
	if err != nil {
		return nil, fmt.Errorf("list requests by status: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*ServiceRequest, error) {
	defer rows.Close()
	var out []*ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, r *ServiceRequest) error {
	if r == nil {
		return fmt.Errorf("service request is required")
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = $2, reject_reason = $3, history = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(r.ID), r.Status.String(), r.RejectReason, history, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update service request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	return nil
}
