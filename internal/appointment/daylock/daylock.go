// Package daylock serialises booking commits per (organization, UTC day).
//
// Slot computation is pure and runs unsynchronized; only "re-check conflict,
// then insert" and the compound reschedule need the lock. The Postgres
// uniqueness index on active (organization_id, start_time) remains the final
// backstop for multi-instance deployments.
package daylock

import (
	"sync"
	"time"

	id "consular/pkg/domain"
)

type key struct {
	org id.OrganizationID
	day string
}

// Keyed hands out one mutex per (organization, day) bucket. Mutexes are
// created on demand and kept for the process lifetime; the key space is
// bounded by organizations × days actually booked.
type Keyed struct {
	mu    sync.Mutex
	locks map[key]*sync.Mutex
}

// New creates an empty lock registry.
func New() *Keyed {
	return &Keyed{locks: make(map[key]*sync.Mutex)}
}

func (k *Keyed) get(org id.OrganizationID, day time.Time) *sync.Mutex {
	kk := key{org: org, day: day.UTC().Format("2006-01-02")}

	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[kk]
	if !ok {
		m = &sync.Mutex{}
		k.locks[kk] = m
	}
	return m
}

// Lock acquires the mutex for the organization's day bucket and returns the
// unlock function.
func (k *Keyed) Lock(org id.OrganizationID, day time.Time) func() {
	m := k.get(org, day)
	m.Lock()
	return m.Unlock
}
