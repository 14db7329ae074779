package redsync_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/locker/redsync"
	"github.com/ezraisw/reslock/logger/std"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LockerTestSuite struct {
	suite.Suite
	ctx     context.Context
	nodes   []*miniredis.Miniredis
	clients []*goredis.Client
	opts    redsync.Options
	locker  *redsync.Locker
}

func (s *LockerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.nodes = nil
	s.clients = nil

	var pools []rsredis.Pool
	for i := 0; i < 3; i++ {
		node := miniredis.RunT(s.T())
		client := goredis.NewClient(&goredis.Options{
			Addr:       node.Addr(),
			MaxRetries: -1,
		})

		s.nodes = append(s.nodes, node)
		s.clients = append(s.clients, client)
		pools = append(pools, rsgoredis.NewPool(client))
	}

	s.opts = redsync.Options{
		Expiry:      2 * time.Second,
		Tries:       3,
		RetryDelay:  10 * time.Millisecond,
		RetryJitter: 5 * time.Millisecond,
	}
	s.locker = redsync.NewLocker(pools, s.opts, std.NewQuietLogger())
}

func (s *LockerTestSuite) TearDownTest() {
	s.locker.Close()
	for _, c := range s.clients {
		c.Close()
	}
}

func (s *LockerTestSuite) TestAcquireAndRelease() {
	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))
	s.Assert().Equal(1, s.locker.Held())
	for _, node := range s.nodes {
		s.Assert().True(node.Exists("/res/1"))
	}

	s.Require().NoError(s.locker.Release(s.ctx, "/res/1"))
	s.Assert().Equal(0, s.locker.Held())
	for _, node := range s.nodes {
		s.Assert().False(node.Exists("/res/1"))
	}
}

func (s *LockerTestSuite) TestReleaseWithoutAcquire() {
	err := s.locker.Release(s.ctx, "/res/1")
	s.Assert().ErrorIs(err, locker.ErrLockNotHeld)
}

func (s *LockerTestSuite) TestQuorumWithOneNodeDown() {
	s.nodes[2].Close()

	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))
	s.Require().NoError(s.locker.Release(s.ctx, "/res/1"))
}

func (s *LockerTestSuite) TestNoQuorumWithTwoNodesDown() {
	s.nodes[1].Close()
	s.nodes[2].Close()

	err := s.locker.Acquire(s.ctx, "/res/1")
	s.Assert().ErrorIs(err, locker.ErrLockAcquisitionFailed)
	s.Assert().Equal(0, s.locker.Held())
}

func (s *LockerTestSuite) TestContendedAcquireFails() {
	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))

	// Nodes still carry the first lease, the second attempt exhausts its tries.
	other := redsync.NewLocker(s.pools(), s.opts, std.NewQuietLogger())
	defer other.Close()

	err := other.Acquire(s.ctx, "/res/1")
	s.Assert().ErrorIs(err, locker.ErrLockAcquisitionFailed)

	s.Require().NoError(s.locker.Release(s.ctx, "/res/1"))
	s.Require().NoError(other.Acquire(s.ctx, "/res/1"))
	s.Require().NoError(other.Release(s.ctx, "/res/1"))
}

func (s *LockerTestSuite) TestDuplicateLocalAcquire() {
	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))

	// Simulate the nodes losing the lease while the local record survives.
	for _, node := range s.nodes {
		node.Del("/res/1")
	}

	err := s.locker.Acquire(s.ctx, "/res/1")
	s.Assert().ErrorIs(err, locker.ErrDuplicateLock)
	for _, node := range s.nodes {
		s.Assert().False(node.Exists("/res/1"))
	}
}

func (s *LockerTestSuite) TestRenewalKeepsLease() {
	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))

	for _, node := range s.nodes {
		node.FastForward(1500 * time.Millisecond)
		s.Require().True(node.Exists("/res/1"))
	}

	// Renewal resets the TTL back to the full expiry.
	s.Require().Eventually(func() bool {
		return s.nodes[0].TTL("/res/1") > time.Second
	}, 3*time.Second, 10*time.Millisecond)
	s.Assert().Equal(1, s.locker.Held())

	s.Require().NoError(s.locker.Release(s.ctx, "/res/1"))
}

func (s *LockerTestSuite) TestFailedRenewalLosesLock() {
	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))

	// Another owner took over every node, extending is no longer possible.
	for _, node := range s.nodes {
		s.Require().NoError(node.Set("/res/1", "someone-else"))
	}

	s.Require().Eventually(func() bool {
		return s.locker.Held() == 0
	}, 3*time.Second, 10*time.Millisecond)

	err := s.locker.Release(s.ctx, "/res/1")
	s.Assert().ErrorIs(err, locker.ErrLockNotHeld)
}

func (s *LockerTestSuite) TestMutualExclusionAcrossLockers() {
	opts := s.opts
	opts.Tries = 200

	var (
		active  int32
		overlap int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 4; i++ {
		l := redsync.NewLocker(s.pools(), opts, std.NewQuietLogger())
		defer l.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Assert().NoError(l.Acquire(s.ctx, "/res/1"))
			if atomic.AddInt32(&active, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			s.Assert().NoError(l.Release(s.ctx, "/res/1"))
		}()
	}

	wg.Wait()
	s.Assert().Zero(atomic.LoadInt32(&overlap))
}

func (s *LockerTestSuite) TestInspect() {
	owner, err := s.locker.Inspect(s.ctx, "/res/1")
	s.Require().NoError(err)
	s.Assert().Nil(owner)

	s.Require().NoError(s.locker.Acquire(s.ctx, "/res/1"))
	defer s.locker.Release(s.ctx, "/res/1")

	owner, err = s.locker.Inspect(s.ctx, "/res/1")
	s.Require().NoError(err)
	s.Require().NotNil(owner)
	s.Assert().NotEmpty(owner.Token)
	s.Assert().Equal(os.Getpid(), owner.PID)
	s.Assert().WithinDuration(time.Now(), owner.AcquiredAt, time.Minute)
}

func (s *LockerTestSuite) TestInspectWithJSONCodec() {
	opts := s.opts
	opts.Codec = redsync.NewJSONCodec()
	l := redsync.NewLocker(s.pools(), opts, std.NewQuietLogger())
	defer l.Close()

	s.Require().NoError(l.Acquire(s.ctx, "/res/1"))
	defer l.Release(s.ctx, "/res/1")

	owner, err := l.Inspect(s.ctx, "/res/1")
	s.Require().NoError(err)
	s.Require().NotNil(owner)
	s.Assert().Equal(os.Getpid(), owner.PID)

	value, err := s.nodes[0].Get("/res/1")
	s.Require().NoError(err)
	s.Assert().Contains(value, `"token":"`+owner.Token+`"`)
}

func (s *LockerTestSuite) pools() []rsredis.Pool {
	pools := make([]rsredis.Pool, 0, len(s.clients))
	for _, c := range s.clients {
		pools = append(pools, rsgoredis.NewPool(c))
	}
	return pools
}

func TestRunLockerTestSuite(t *testing.T) {
	suite.Run(t, new(LockerTestSuite))
}

func TestNewLockerFromNodes(t *testing.T) {
	for _, driver := range []redsync.Driver{redsync.DriverGoRedis, redsync.DriverRedigo} {
		t.Run(string(driver), func(t *testing.T) {
			nodes := []string{miniredis.RunT(t).Addr(), miniredis.RunT(t).Addr(), miniredis.RunT(t).Addr()}

			l, err := redsync.NewLockerFromNodes(nodes, redsync.Options{Driver: driver}, std.NewQuietLogger())
			require.NoError(t, err)
			defer l.Close()

			ctx := context.Background()
			require.NoError(t, l.Acquire(ctx, "/res/1"))
			require.NoError(t, l.Release(ctx, "/res/1"))
		})
	}
}

func TestNewLockerFromMalformedNodes(t *testing.T) {
	cases := [][]string{
		{},
		{"localhost"},
		{"localhost:http"},
		{"localhost:0"},
		{"localhost:6379", "localhost:99999"},
	}

	for _, nodes := range cases {
		_, err := redsync.NewLockerFromNodes(nodes, redsync.Options{}, std.NewQuietLogger())
		assert.ErrorIs(t, err, locker.ErrLockAcquisitionFailed, "nodes %v", nodes)
	}
}
