package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// PostgresStore persists country schedule configurations in PostgreSQL.
// Calendar payloads (week, holidays, closures) are stored as a JSONB document
// built from the validated typed config; the row is the unit of replacement.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed schedule store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type calendarDoc struct {
	Week     map[string]DayHours `json:"week"`
	Holidays []Holiday           `json:"holidays"`
	Closures []Closure           `json:"closures"`
}

func (s *PostgresStore) Save(ctx context.Context, cfg *CountryScheduleConfig) error {
	if cfg == nil {
		return fmt.Errorf("schedule config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc := calendarDoc{
		Week:     make(map[string]DayHours, len(cfg.Week)),
		Holidays: cfg.Holidays,
		Closures: cfg.Closures,
	}
	for weekday, hours := range cfg.Week {
		doc.Week[weekday.String()] = hours
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal calendar: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO country_schedules (organization_id, country, timezone, calendar, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, country)
		DO UPDATE SET timezone = $3, calendar = $4, updated_at = $5`,
		uuid.UUID(cfg.Organization), cfg.Country.String(), cfg.Timezone, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save schedule config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, org id.OrganizationID, country id.CountryCode) (*CountryScheduleConfig, error) {
	var (
		timezone  string
		payload   []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT timezone, calendar, updated_at
		FROM country_schedules
		WHERE organization_id = $1 AND country = $2`,
		uuid.UUID(org), country.String(),
	).Scan(&timezone, &payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("schedule config %s/%s: %w", org, country, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule config: %w", err)
	}

	var doc calendarDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal calendar: %w", err)
	}

	cfg := &CountryScheduleConfig{
		Organization: org,
		Country:      country,
		Week:         make(map[time.Weekday]DayHours, len(doc.Week)),
		Holidays:     doc.Holidays,
		Closures:     doc.Closures,
		Timezone:     timezone,
		UpdatedAt:    updatedAt,
	}
	for name, hours := range doc.Week {
		weekday, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		cfg.Week[weekday] = hours
	}
	return cfg, nil
}

func (s *PostgresStore) ListCountries(ctx context.Context, org id.OrganizationID) ([]id.CountryCode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country FROM country_schedules WHERE organization_id = $1 ORDER BY country`,
		uuid.UUID(org),
	)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var countries []id.CountryCode
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, id.CountryCode(c))
	}
	return countries, rows.Err()
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q in stored calendar", name)
}
