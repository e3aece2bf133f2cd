package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/resilience"
)

type fakeRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	hang bool
	gets atomic.Int64
}

func newFakeRemote() *fakeRemote { return &fakeRemote{data: make(map[string][]byte)} }

func (f *fakeRemote) Get(ctx context.Context, key string) ([]byte, error) {
	f.gets.Add(1)
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (f *fakeRemote) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func (f *fakeRemote) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

type result struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

func TestKeyIncludesBuildID(t *testing.T) {
	a := New[result]("build-a", nil, Config{}, nil)
	b := New[result]("build-b", nil, Config{}, nil)
	if a.Key("find", "hujan", 5) == b.Key("find", "hujan", 5) {
		t.Error("different builds must not share keys")
	}
	if a.Key("find", "hujan", 5) == a.Key("find", "hujan", 6) {
		t.Error("different counts must not share keys")
	}
	if a.Key("find", "hujan", 5) == a.Key("recommend", "hujan", 5) {
		t.Error("different kinds must not share keys")
	}
	if a.Key("find", "hujan", 5) != a.Key("find", "hujan", 5) {
		t.Error("key must be stable")
	}
}

func TestLocalOnly(t *testing.T) {
	c := New[result]("b", nil, Config{LocalSize: 8}, nil)
	ctx := context.Background()
	key := c.Key("find", "q", 5)

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set(ctx, key, result{Title: "Hujan", Score: 0.5})
	got, ok := c.Get(ctx, key)
	if !ok || got.Title != "Hujan" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 || s.Remote {
		t.Errorf("Stats = %+v", s)
	}
}

func TestRemotePromotion(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	writer := New[result]("b", remote, Config{}, nil)
	key := writer.Key("find", "q", 5)
	writer.Set(ctx, key, result{Title: "Pelangi", Score: 0.9})

	reader := New[result]("b", remote, Config{}, nil)
	got, ok := reader.Get(ctx, key)
	if !ok || got.Title != "Pelangi" {
		t.Fatalf("remote Get = %+v, %v", got, ok)
	}
	before := remote.gets.Load()
	if _, ok := reader.Get(ctx, key); !ok {
		t.Fatal("promoted value missing")
	}
	if remote.gets.Load() != before {
		t.Error("second read should be served locally")
	}
}

func TestRemoteFailureIsAMiss(t *testing.T) {
	remote := newFakeRemote()
	remote.err = errors.New("connection refused")
	c := New[result]("b", remote, Config{Breaker: resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, ok := c.Get(ctx, c.Key("find", "x", i)); ok {
			t.Fatal("failing remote should never hit")
		}
	}
	if s := c.Stats(); s.Breaker != "open" {
		t.Errorf("breaker = %q, want open", s.Breaker)
	}
	if got := remote.gets.Load(); got != 2 {
		t.Errorf("remote calls = %d, want 2 before the breaker opened", got)
	}
}

func TestStalledRemoteTimesOutAndTrips(t *testing.T) {
	remote := newFakeRemote()
	remote.hang = true
	c := New[result]("b", remote, Config{Breaker: resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}}, nil)
	ctx := context.Background()
	key := c.Key("find", "slow", 5)

	start := time.Now()
	v, cached, err := c.GetOrCompute(ctx, key, func() (result, error) {
		return result{Title: "Hujan"}, nil
	})
	if err != nil || cached || v.Title != "Hujan" {
		t.Fatalf("GetOrCompute = %+v, %v, %v", v, cached, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stalled remote held the request for %v", elapsed)
	}
	// the timed-out get and set count as two failures
	if s := c.Stats(); s.Breaker != "open" {
		t.Errorf("breaker = %q, want open", s.Breaker)
	}
	before := remote.gets.Load()
	if _, ok := c.Get(ctx, c.Key("find", "other", 5)); ok {
		t.Error("stalled remote should never hit")
	}
	if remote.gets.Load() != before {
		t.Error("open breaker should not reach the remote")
	}
}

func TestCallerCancelDoesNotTrip(t *testing.T) {
	remote := newFakeRemote()
	remote.hang = true
	c := New[result]("b", remote, Config{Breaker: resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := c.Get(ctx, c.Key("find", "gone", 5)); ok {
		t.Fatal("cancelled get should miss")
	}
	if s := c.Stats(); s.Breaker != "closed" {
		t.Errorf("breaker = %q, want closed after a caller cancellation", s.Breaker)
	}
}

func TestInvalidateStaysInNamespace(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	find := New[result]("b", remote, Config{Namespace: "find"}, nil)
	rec := New[result]("b", remote, Config{Namespace: "recommend"}, nil)
	find.Set(ctx, find.Key("find", "a", 5), result{Title: "Hujan"})
	recKey := rec.Key("recommend", "hujan", 5)
	rec.Set(ctx, recKey, result{Title: "Gerimis"})

	if !strings.HasPrefix(recKey, "lyric:recommend:") {
		t.Errorf("key %q lacks its namespace", recKey)
	}
	n, err := find.Invalidate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Invalidate removed %d keys, want 1 local and 1 remote", n)
	}
	remote.mu.Lock()
	_, kept := remote.data[recKey]
	remote.mu.Unlock()
	if !kept {
		t.Error("invalidating the find cache removed a recommend key")
	}
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := New[result]("b", nil, Config{}, nil)
	key := c.Key("find", "same", 5)
	var calls atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), key, func() (result, error) {
				calls.Add(1)
				<-release
				return result{Title: "Hujan"}, nil
			})
			if err != nil || v.Title != "Hujan" {
				t.Errorf("GetOrCompute = %+v, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 8 {
		t.Fatalf("compute calls = %d", n)
	}
	_, cached, err := c.GetOrCompute(context.Background(), key, func() (result, error) {
		t.Error("compute should not run for a cached key")
		return result{}, nil
	})
	if err != nil || !cached {
		t.Errorf("cached = %v, err = %v", cached, err)
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := New[result]("b", nil, Config{}, nil)
	key := c.Key("find", "bad", 5)
	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), key, func() (result, error) {
		return result{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), key); ok {
		t.Error("failed compute must not be cached")
	}
}

func TestInvalidate(t *testing.T) {
	remote := newFakeRemote()
	c := New[result]("b", remote, Config{}, nil)
	ctx := context.Background()
	c.Set(ctx, c.Key("find", "a", 5), result{})
	c.Set(ctx, c.Key("find", "b", 5), result{})

	n, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("Invalidate removed %d keys, want 4", n)
	}
	if _, ok := c.Get(ctx, c.Key("find", "a", 5)); ok {
		t.Error("value survived invalidation")
	}
}

func TestLocalTTL(t *testing.T) {
	c := New[result]("b", nil, Config{LocalTTL: 10 * time.Millisecond}, nil)
	ctx := context.Background()
	key := c.Key("find", "a", 5)
	c.Set(ctx, key, result{Title: "x"})
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, key); ok {
		t.Error("entry should have expired")
	}
}
