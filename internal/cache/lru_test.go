package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	now = now.Add(2 * time.Minute)
	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestLRUCache_GetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := NewLRUCache[[]int](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) ([]int, error) {
		calls.Add(1)
		<-release
		return []int{1, 2, 3}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "user", load)
			if err != nil || len(v) != 3 {
				t.Errorf("GetOrLoad() = %v, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if _, ok := c.Get("user"); !ok {
		t.Error("loaded value not cached")
	}
}

func TestLRUCache_DeleteDuringLoadDropsStaleValue(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.GetOrLoad(context.Background(), "user", func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	c.Delete("user")
	close(release)
	<-done

	if _, ok := c.Get("user"); ok {
		t.Error("value loaded before invalidation must not be cached")
	}
}

func TestLRUCache_ReadAfterDeleteStartsFreshLoad(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	first := make(chan string, 1)
	go func() {
		v, _ := c.GetOrLoad(context.Background(), "user", func(context.Context) (string, error) {
			close(started)
			<-release
			return "before-mutation", nil
		})
		first <- v
	}()

	<-started
	c.Delete("user")

	second := make(chan string, 1)
	go func() {
		v, err := c.GetOrLoad(context.Background(), "user", func(context.Context) (string, error) {
			return "after-mutation", nil
		})
		if err != nil {
			t.Errorf("GetOrLoad() error = %v", err)
		}
		second <- v
	}()

	select {
	case v := <-second:
		if v != "after-mutation" {
			t.Errorf("read issued after Delete = %q, want after-mutation", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read issued after Delete waited on the older load")
	}

	close(release)
	if v := <-first; v != "before-mutation" {
		t.Errorf("first GetOrLoad() = %q", v)
	}
	if v, ok := c.Get("user"); !ok || v != "after-mutation" {
		t.Errorf("Get() = %q, %v; want after-mutation", v, ok)
	}
	if n := c.tracked(); n != 0 {
		t.Errorf("%d generations still tracked after all callers returned", n)
	}
}

func TestLRUCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "fresh", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(leaderCtx, "user", load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := c.GetOrLoad(context.Background(), "user", load)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller error = %v, want context.Canceled", err)
	}

	close(release)
	res := <-follower
	if res.err != nil || res.v != "fresh" {
		t.Errorf("caller with live context got %q, %v", res.v, res.err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if v, ok := c.Get("user"); !ok || v != "fresh" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
}

func TestLRUCache_DetachedLoadIsBounded(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.loadTimeout = 10 * time.Millisecond

	_, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrLoad() error = %v, want deadline exceeded", err)
	}
	if n := c.tracked(); n != 0 {
		t.Errorf("%d generations still tracked", n)
	}
}

func TestLRUCache_GetOrLoadError(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	wantErr := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("GetOrLoad() error = %v", err)
	}
	if c.Size() != 0 {
		t.Error("failed load must not be cached")
	}
}

func TestManager(t *testing.T) {
	c := NewLRUCache[int](10, -time.Second)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}
	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}
