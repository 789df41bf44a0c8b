//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformredis "skillhub/internal/platform/redis"
	"skillhub/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	limiter *RedisLimiter
}

func TestRedisLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.limiter = NewRedisLimiter(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisLimiterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLimiterSuite) TestAllowsUpToLimit() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := s.limiter.Allow(ctx, "k", 5, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(5-(i+1), res.Remaining)
	}

	res, err := s.limiter.Allow(ctx, "k", 5, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Zero(res.Remaining)
}

func (s *RedisLimiterSuite) TestConcurrentRequestsNeverOveradmit() {
	ctx := context.Background()
	const goroutines = 20
	const limit = 5

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.limiter.Allow(ctx, "k", limit, time.Minute)
			if err == nil && res.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(limit), admitted.Load())

	count, err := s.redis.Client.ZCard(ctx, "ratelimit:k").Result()
	s.Require().NoError(err)
	s.Equal(int64(limit), count)
}

func (s *RedisLimiterSuite) TestDeniedHitNotRecorded() {
	ctx := context.Background()

	_, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		res, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed)
	}

	// Only the single allowed hit is in the window.
	count, err := s.redis.Client.ZCard(ctx, "ratelimit:k").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *RedisLimiterSuite) TestWindowSlides() {
	ctx := context.Background()

	res, err := s.limiter.Allow(ctx, "k", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.limiter.Allow(ctx, "k", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.False(res.Allowed)

	time.Sleep(600 * time.Millisecond)

	res, err = s.limiter.Allow(ctx, "k", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisLimiterSuite) TestKeysIndependent() {
	ctx := context.Background()

	_, err := s.limiter.Allow(ctx, "a", 1, time.Minute)
	s.Require().NoError(err)

	res, err := s.limiter.Allow(ctx, "b", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisLimiterSuite) TestReset() {
	ctx := context.Background()

	_, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.limiter.Reset(ctx, "k"))

	res, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
