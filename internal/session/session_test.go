package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, TokenBytes*2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()

	s, err := store.Issue(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), s.ExpiresAt)

	user, ok := store.Validate(ctx, s.Token)
	assert.True(t, ok)
	assert.Equal(t, "demo", user)

	clock.Advance(59 * time.Minute)
	_, ok = store.Validate(ctx, s.Token)
	assert.True(t, ok, "still valid before expiry")

	clock.Advance(time.Minute)
	_, ok = store.Validate(ctx, s.Token)
	assert.False(t, ok, "invalid once expiresAt is reached")
	assert.Equal(t, 0, store.Len(), "expired entry deleted on read")
}

func TestMemoryStore_RevokeIsIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()

	s, err := store.Issue(ctx, "demo")
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, s.Token))
	require.NoError(t, store.Revoke(ctx, s.Token))
	require.NoError(t, store.Revoke(ctx, "never-issued"))

	_, ok := store.Validate(ctx, s.Token)
	assert.False(t, ok)
}

func TestMemoryStore_SweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()

	old1, _ := store.Issue(ctx, "a")
	old2, _ := store.Issue(ctx, "b")
	clock.Advance(30 * time.Minute)
	fresh, _ := store.Issue(ctx, "c")
	clock.Advance(31 * time.Minute)

	assert.Equal(t, 2, store.Sweep(ctx))
	assert.Equal(t, 1, store.Len())

	_, ok := store.Validate(ctx, old1.Token)
	assert.False(t, ok)
	_, ok = store.Validate(ctx, old2.Token)
	assert.False(t, ok)
	user, ok := store.Validate(ctx, fresh.Token)
	assert.True(t, ok)
	assert.Equal(t, "c", user)

	assert.Equal(t, 0, store.Sweep(ctx))
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := store.Issue(ctx, "user")
			if !assert.NoError(t, err) {
				return
			}
			_, ok := store.Validate(ctx, s.Token)
			assert.True(t, ok)
			store.Sweep(ctx)
			_ = store.Revoke(ctx, s.Token)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}

type RedisStoreSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *RedisStore
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewRedisStore(s.rdb, time.Hour)
}

func (s *RedisStoreSuite) TearDownTest() {
	_ = s.rdb.Close()
}

func (s *RedisStoreSuite) TestIssueAndValidate() {
	ctx := context.Background()
	sess, err := s.store.Issue(ctx, "demo")
	s.Require().NoError(err)

	user, ok := s.store.Validate(ctx, sess.Token)
	s.True(ok)
	s.Equal("demo", user)
	s.Equal(1, s.store.Len())
	s.True(s.mr.TTL(redisKey(sess.Token)) > 0)
}

func (s *RedisStoreSuite) TestExpiry() {
	ctx := context.Background()
	sess, err := s.store.Issue(ctx, "demo")
	s.Require().NoError(err)

	s.mr.FastForward(time.Hour + time.Second)
	_, ok := s.store.Validate(ctx, sess.Token)
	s.False(ok)
	s.Equal(0, s.store.Sweep(ctx))
}

func (s *RedisStoreSuite) TestRevoke() {
	ctx := context.Background()
	sess, err := s.store.Issue(ctx, "demo")
	s.Require().NoError(err)

	s.NoError(s.store.Revoke(ctx, sess.Token))
	s.NoError(s.store.Revoke(ctx, sess.Token))
	_, ok := s.store.Validate(ctx, sess.Token)
	s.False(ok)
}

func (s *RedisStoreSuite) TestValidateUnknownAndEmpty() {
	ctx := context.Background()
	_, ok := s.store.Validate(ctx, "")
	s.False(ok)
	_, ok = s.store.Validate(ctx, "missing")
	s.False(ok)
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func TestSweeper_RemovesExpiredAndStops(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	_, err := store.Issue(ctx, "demo")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	sweeper := NewSweeper(store, 10*time.Millisecond)
	sweeper.Start(ctx)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(time.Minute, nil), 0)
	assert.Equal(t, DefaultSweepInterval, sweeper.interval)
	sweeper.Stop()
}

func TestSweeper_RestartIsNoop(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(time.Minute, nil), 10*time.Millisecond)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		sweeper.Start(ctx)
		sweeper.Start(ctx)
		sweeper.Stop()
		sweeper.Start(ctx)
		sweeper.Stop()
	})
	assert.False(t, sweeper.started && !sweeper.stopped)
}

func TestSweeper_StartAfterStopWithoutRun(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(time.Minute, nil), 10*time.Millisecond)
	sweeper.Stop()
	sweeper.Start(context.Background())
	assert.False(t, sweeper.started)
	assert.Nil(t, sweeper.cancel)
}

func TestCookieCodec(t *testing.T) {
	clock := newFakeClock()
	codec := NewCookieCodec("test-secret-at-least-32-characters!!")
	codec.now = clock.Now

	sess := Session{Token: "abc123", Username: "demo", ExpiresAt: clock.Now().Add(time.Hour)}
	value, err := codec.Encode(sess)
	require.NoError(t, err)

	token, ok := codec.Decode(value)
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(value, ".")
		require.Len(t, parts, 3)
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, ok := codec.Decode(parts[0] + "." + parts[1] + "." + string(sig))
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewCookieCodec("another-secret-at-least-32-chars!!!")
		other.now = clock.Now
		_, ok := other.Decode(value)
		assert.False(t, ok)
	})

	t.Run("garbage and empty", func(t *testing.T) {
		_, ok := codec.Decode("not-a-jwt")
		assert.False(t, ok)
		_, ok = codec.Decode("")
		assert.False(t, ok)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			ID:        "abc123",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, ok := codec.Decode(raw)
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		_, ok := codec.Decode(value)
		assert.False(t, ok)
	})

	_, err = codec.Encode(Session{})
	assert.Error(t, err)
}
