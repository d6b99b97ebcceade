package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// PostgresStore persists profiles in PostgreSQL. Documents are stored as a
// JSONB column: they are always read and written with their profile, never
// queried independently.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	docs, err := json.Marshal(p.Documents)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (
			id, actor_id, full_name, date_of_birth, nationality,
			email, phone, address, documents, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			nationality = EXCLUDED.nationality,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			documents = EXCLUDED.documents,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(p.ID), uuid.UUID(p.Actor), p.FullName, p.DateOfBirth, p.Nationality.String(),
		p.Email, p.Phone, p.Address, docs, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const selectSQL = `
	SELECT id, actor_id, full_name, date_of_birth, nationality,
	       email, phone, address, documents, created_at, updated_at
	FROM profiles`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p                Profile
		profileID, actor uuid.UUID
		nationality      string
		docs             []byte
	)
	err := row.Scan(&profileID, &actor, &p.FullName, &p.DateOfBirth, &nationality,
		&p.Email, &p.Phone, &p.Address, &docs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.ProfileID(profileID)
	p.Actor = id.ActorID(actor)
	p.Nationality = id.CountryCode(nationality)
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &p.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}
	return &p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*Profile, error) {
	row := s.pool.QueryRow(ctx, selectSQL+` WHERE id = $1`, uuid.UUID(profileID))
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByActor(ctx context.Context, actor id.ActorID) (*Profile, error) {
	row := s.pool.QueryRow(ctx, selectSQL+` WHERE actor_id = $1`, uuid.UUID(actor))
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile for actor %s: %w", actor, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by actor: %w", err)
	}
	return p, nil
}
