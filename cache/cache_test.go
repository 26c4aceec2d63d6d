package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type user struct {
	name string
}

func TestGetConcurrentSingleProduction(t *testing.T) {
	var calls int32
	release := make(chan struct{})

	c, err := New(func(_ context.Context, key string) (*user, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &user{name: key}, nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const num = 16
	var wg sync.WaitGroup
	results := make([]*user, num)
	for i := 0; i < num; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			u, err := c.Get(context.TODO(), "alice")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results[idx] = u
		}(i)
	}
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Producer invocations do not match.\nWanted:%v\nGot:%v\n", 1, n)
	}
	for i, u := range results {
		if u != results[0] {
			t.Errorf("Caller %d observed a different value", i)
		}
	}
}

func TestPutIfAbsentPreventsProduction(t *testing.T) {
	c, _ := New(func(_ context.Context, key string) (string, error) {
		t.Errorf("Producer invoked for seeded key %s", key)
		return "", nil
	})

	if !c.PutIfAbsent("k", "seeded") {
		t.Fatalf("PutIfAbsent did not store the value")
	}
	if c.PutIfAbsent("k", "other") {
		t.Errorf("PutIfAbsent replaced an existing value")
	}

	v, err := c.Get(context.TODO(), "k")
	if err != nil || v != "seeded" {
		t.Errorf("Get returned %q, %v", v, err)
	}
}

func TestMissingValueIsContractError(t *testing.T) {
	var calls int
	c, _ := New(func(context.Context, string) (*user, error) {
		calls++
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.TODO(), "ghost")

		var cerr *ContractError
		if !errors.As(err, &cerr) || cerr.Key != "ghost" {
			t.Errorf("Expected a ContractError, got %v", err)
		}
	}
	if calls != 2 || c.Len() != 0 {
		t.Errorf("Missing value was cached: calls=%d len=%d", calls, c.Len())
	}
}

func TestProducerErrorNotCached(t *testing.T) {
	fail := true
	c, _ := New(func(context.Context, string) (int, error) {
		if fail {
			return 0, errors.New("offline")
		}
		return 7, nil
	})

	if _, err := c.Get(context.TODO(), "k"); err == nil {
		t.Fatalf("Expected the producer error")
	}
	fail = false
	if v, err := c.Get(context.TODO(), "k"); err != nil || v != 7 {
		t.Errorf("Get returned %d, %v", v, err)
	}
}

func TestCanceledCallerDoesNotFailWaiters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, _ := New(func(ctx context.Context, key string) (*user, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &user{name: key}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "alice")
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "alice")
		second <- err
	}()

	cancel()
	close(release)
	if err := <-first; err != nil {
		t.Errorf("The canceled caller received %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("The waiting caller received %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("The produced value was not cached")
	}
}

func TestClearForcesProduction(t *testing.T) {
	var calls int
	c, _ := New(func(context.Context, string) (int, error) {
		calls++
		return calls, nil
	})

	first, _ := c.Get(context.TODO(), "k")
	c.Clear()
	second, _ := c.Get(context.TODO(), "k")
	if first == second || calls != 2 {
		t.Errorf("Clear did not force a new production: %d %d", first, second)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(func(_ context.Context, key string) (string, error) {
		return key, nil
	}, WithMetrics(reg, "users"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, _ = c.Get(context.TODO(), "a")
	_, _ = c.Get(context.TODO(), "a")
	_, _ = c.Get(context.TODO(), "b")

	if got := testutil.ToFloat64(c.metrics.hits); got != 1 {
		t.Errorf("Hits do not match.\nWanted:%v\nGot:%v\n", 1, got)
	}
	if got := testutil.ToFloat64(c.metrics.misses); got != 2 {
		t.Errorf("Misses do not match.\nWanted:%v\nGot:%v\n", 2, got)
	}
	if got := testutil.ToFloat64(c.metrics.entries); got != 2 {
		t.Errorf("Size does not match.\nWanted:%v\nGot:%v\n", 2, got)
	}

	if _, err := New(func(context.Context, string) (string, error) {
		return "", nil
	}, WithMetrics(reg, "users")); err == nil {
		t.Errorf("Expected duplicate registration to fail")
	}
}
