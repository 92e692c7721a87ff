//go:build integration

package mutex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"circulation/internal/odl/mutex"
	"circulation/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	factory *mutex.Factory
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.factory = mutex.NewFactory(s.redis.Client, "test", time.Second)
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestAcquireIsExclusive() {
	ctx := context.Background()
	a := s.factory.ForCollection("recalculate-hold-queue", 42)
	b := s.factory.ForCollection("recalculate-hold-queue", 42)

	ok, err := a.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = b.Acquire(ctx)
	s.Require().NoError(err)
	s.False(ok)

	ttl, err := s.redis.Client.PTTL(ctx, a.Key()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisLockerSuite) TestReleaseComparesToken() {
	ctx := context.Background()
	a := s.factory.ForCollection("t", 1)
	b := s.factory.ForCollection("t", 1)

	_, err := a.Acquire(ctx)
	s.Require().NoError(err)

	released, err := b.Release(ctx)
	s.Require().NoError(err)
	s.False(released)

	released, err = a.Release(ctx)
	s.Require().NoError(err)
	s.True(released)

	n, err := s.redis.Client.Exists(ctx, a.Key()).Result()
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisLockerSuite) TestLeaseExpiresAndExtend() {
	ctx := context.Background()
	a := s.factory.ForCollection("t", 2)
	_, err := a.Acquire(ctx)
	s.Require().NoError(err)

	ok, err := a.Extend(ctx, 5*time.Second)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.redis.Client.PExpire(ctx, a.Key(), 10*time.Millisecond).Err())
	time.Sleep(50 * time.Millisecond)

	b := s.factory.ForCollection("t", 2)
	ok, err = b.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok, "orphaned lease expired")

	ok, err = a.Extend(ctx, time.Second)
	s.Require().NoError(err)
	s.False(ok)
}
