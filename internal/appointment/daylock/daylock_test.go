package daylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "consular/pkg/domain"
)

func TestSameBucketSerializes(t *testing.T) {
	locks := New()
	org := id.NewOrganizationID()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		current int
		max     int
		mu      sync.Mutex
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(org, day)
			defer unlock()

			mu.Lock()
			current++
			if current > max {
				max = current
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "no two holders of the same (org, day) lock at once")
}

func TestDifferentBucketsDoNotBlock(t *testing.T) {
	locks := New()
	org := id.NewOrganizationID()
	monday := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tuesday := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	unlockMon := locks.Lock(org, monday)
	defer unlockMon()

	done := make(chan struct{})
	go func() {
		unlockTue := locks.Lock(org, tuesday)
		unlockTue()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different day bucket blocked behind held lock")
	}
}

func TestInstantsOnSameUTCDayShareBucket(t *testing.T) {
	locks := New()
	org := id.NewOrganizationID()

	a := locks.get(org, time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC))
	b := locks.get(org, time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC))
	assert.Same(t, a, b)
}
