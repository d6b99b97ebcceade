package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// Resolver turns (organization, country, date) into the day's operating
// calendar. Resolution is read-only and safe to run unsynchronized.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets a logger for degraded-resolution reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a calendar resolver backed by the given store.
func NewResolver(store Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("schedule store is required")
	}
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveDay resolves the operating schedule for a local calendar date.
//
// The date is interpreted in the organization's configured time zone for the
// country; holiday and closure comparisons are by local calendar date, never
// UTC instant. A missing country configuration degrades to a closed day so
// callers see empty availability rather than an error.
func (r *Resolver) ResolveDay(ctx context.Context, org id.OrganizationID, country id.CountryCode, date Date) (DaySchedule, error) {
	cfg, err := r.store.Find(ctx, org, country)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if r.logger != nil {
				r.logger.DebugContext(ctx, "no schedule config, treating day as closed",
					"organization_id", org,
					"country", country,
					"date", date.String(),
				)
			}
			return Closed(date), nil
		}
		return DaySchedule{}, fmt.Errorf("resolve day %s: %w", date, err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return DaySchedule{}, err
	}

	day, ok := cfg.Week[date.Weekday()]
	if !ok || !day.Open {
		return Closed(date), nil
	}

	for _, h := range cfg.Holidays {
		if h.Date.Compare(date) == 0 {
			return Closed(date), nil
		}
	}

	for _, cl := range cfg.Closures {
		if cl.Contains(date) {
			return Closed(date), nil
		}
	}

	return DaySchedule{
		Date:     date,
		Open:     true,
		Windows:  day.Windows,
		Location: loc,
	}, nil
}

// ResolveAt resolves the operating schedule for the local calendar day
// containing the given instant. The instant is mapped to a calendar date in
// the organization's configured zone first, so a late-evening local slot
// resolves against its local day even when its UTC date differs.
func (r *Resolver) ResolveAt(ctx context.Context, org id.OrganizationID, country id.CountryCode, at time.Time) (DaySchedule, error) {
	cfg, err := r.store.Find(ctx, org, country)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Closed(DateOf(at, time.UTC)), nil
		}
		return DaySchedule{}, fmt.Errorf("resolve instant %s: %w", at.Format(time.RFC3339), err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return DaySchedule{}, err
	}
	return r.ResolveDay(ctx, org, country, DateOf(at, loc))
}
