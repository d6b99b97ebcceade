//go:build integration

package availability_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consular/internal/appointment"
	"consular/internal/availability"
	"consular/internal/schedule"
	id "consular/pkg/domain"
	"consular/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *availability.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = availability.NewRedisCache(s.redis.Client, time.Minute, slog.New(slog.DiscardHandler))
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func testSlots() []appointment.Slot {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return []appointment.Slot{
		{Start: start, End: start.Add(30 * time.Minute)},
		{Start: start.Add(30 * time.Minute), End: start.Add(time.Hour)},
	}
}

func cacheKey() string {
	return availability.CacheKey(
		id.NewOrganizationID(), id.CountryCode("GR"),
		schedule.Date{Year: 2025, Month: time.June, Day: 2},
		appointment.TypeInterview,
	)
}

func (s *RedisCacheSuite) TestSetGetRoundTrip() {
	ctx := context.Background()
	key := cacheKey()
	slots := testSlots()

	s.cache.Set(ctx, key, slots)

	got, ok := s.cache.Get(ctx, key)
	s.Require().True(ok)
	s.Require().Len(got, 2)
	s.True(got[0].Start.Equal(slots[0].Start))
	s.True(got[1].End.Equal(slots[1].End))
}

func (s *RedisCacheSuite) TestGetMiss() {
	_, ok := s.cache.Get(context.Background(), cacheKey())
	s.False(ok)
}

func (s *RedisCacheSuite) TestEmptySlotListIsCached() {
	ctx := context.Background()
	key := cacheKey()

	s.cache.Set(ctx, key, []appointment.Slot{})

	got, ok := s.cache.Get(ctx, key)
	s.True(ok, "a fully booked day is a valid cached answer")
	s.Empty(got)
}

func (s *RedisCacheSuite) TestDelete() {
	ctx := context.Background()
	first, second := cacheKey(), cacheKey()

	s.cache.Set(ctx, first, testSlots())
	s.cache.Set(ctx, second, testSlots())

	s.cache.Delete(ctx, first, second)

	_, ok := s.cache.Get(ctx, first)
	s.False(ok)
	_, ok = s.cache.Get(ctx, second)
	s.False(ok)
}

func (s *RedisCacheSuite) TestCorruptEntryReadsAsMiss() {
	ctx := context.Background()
	key := cacheKey()

	s.Require().NoError(s.redis.Client.Set(ctx, key, "not-json", time.Minute).Err())

	_, ok := s.cache.Get(ctx, key)
	s.False(ok)
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	shortLived := availability.NewRedisCache(s.redis.Client, 100*time.Millisecond, slog.New(slog.DiscardHandler))
	key := cacheKey()

	shortLived.Set(ctx, key, testSlots())
	time.Sleep(200 * time.Millisecond)

	_, ok := shortLived.Get(ctx, key)
	s.False(ok)
}
