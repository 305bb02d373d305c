package spacetraveling

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

type testLogger struct {
	errors int32
}

func (l *testLogger) Infof(string, ...interface{})  {}
func (l *testLogger) Warnf(string, ...interface{})  {}
func (l *testLogger) Errorf(string, ...interface{}) { atomic.AddInt32(&l.errors, 1) }

func TestResolverReturnsLoadedPost(t *testing.T) {
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		return cms.PostDetail{UID: uid, Title: "Hooks"}, nil
	}, time.Second, &testLogger{})

	post, err := r.Resolve(context.Background(), "hooks", time.Second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if post.Title != "Hooks" {
		t.Errorf("Title = %q", post.Title)
	}
}

func TestResolverPendingThenReady(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return cms.PostDetail{UID: uid}, nil
	}, time.Second, &testLogger{})

	if _, err := r.Resolve(context.Background(), "slow", 10*time.Millisecond); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "slow", 0); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending on poll, got %v", err)
	}
	close(release)

	post, err := r.Resolve(context.Background(), "slow", time.Second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if post.UID != "slow" {
		t.Errorf("UID = %q", post.UID)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestResolverRemembersNotFound(t *testing.T) {
	var calls int32
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		atomic.AddInt32(&calls, 1)
		return cms.PostDetail{}, cms.ErrNotFound
	}, time.Second, &testLogger{})

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "missing", time.Second); !errors.Is(err, cms.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}

	r.Forget("missing")
	r.Resolve(context.Background(), "missing", time.Second)
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Forget should trigger a new load, calls = %d", n)
	}
}

func TestResolverRetriesAfterFailure(t *testing.T) {
	var calls int32
	log := &testLogger{}
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return cms.PostDetail{}, errors.New("backend down")
		}
		return cms.PostDetail{UID: uid}, nil
	}, time.Second, log)

	if _, err := r.Resolve(context.Background(), "flaky", time.Second); err == nil {
		t.Fatal("expected the first load to fail")
	}
	if atomic.LoadInt32(&log.errors) != 1 {
		t.Error("failure should be logged")
	}
	if _, err := r.Resolve(context.Background(), "flaky", time.Second); err != nil {
		t.Fatalf("second Resolve should reload: %v", err)
	}
}

func TestResolverDropsStaleResults(t *testing.T) {
	clock := &fakeClock{t: time.Date(2021, 3, 25, 0, 0, 0, 0, time.UTC)}
	var calls int32
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		atomic.AddInt32(&calls, 1)
		return cms.PostDetail{}, cms.ErrNotFound
	}, time.Second, &testLogger{})
	r.now = clock.Now

	r.Resolve(context.Background(), "gone", time.Second)
	clock.Advance(resolvedTTL)
	r.Resolve(context.Background(), "gone", time.Second)
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("stale result should be reloaded, calls = %d", n)
	}
}

func TestResolverSweepDropsFinishedResolutions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2021, 3, 25, 0, 0, 0, 0, time.UTC)}
	release := make(chan struct{})
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		if uid == "slow" {
			<-release
		}
		return cms.PostDetail{}, cms.ErrNotFound
	}, time.Second, &testLogger{})
	r.now = clock.Now

	for i := 0; i < 20; i++ {
		uid := "nope-" + strconv.Itoa(i)
		if _, err := r.Resolve(context.Background(), uid, time.Second); !errors.Is(err, cms.ErrNotFound) {
			t.Fatalf("Resolve(%s) = %v, want ErrNotFound", uid, err)
		}
	}
	if _, err := r.Resolve(context.Background(), "slow", 0); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if r.Len() != 21 {
		t.Fatalf("Len = %d, want 21", r.Len())
	}

	if n := r.Sweep(); n != 0 {
		t.Errorf("fresh results should be kept, swept %d", n)
	}
	clock.Advance(resolvedTTL)
	if n := r.Sweep(); n != 20 {
		t.Errorf("Sweep removed %d, want 20", n)
	}
	// The running load stays so pollers can join it.
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	close(release)
}

func TestResolverBoundsConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return cms.PostDetail{UID: uid}, nil
	}, time.Second, &testLogger{})
	r.maxLoads = 2

	for _, uid := range []string{"a", "b"} {
		if _, err := r.Resolve(context.Background(), uid, 0); !errors.Is(err, ErrPending) {
			t.Fatalf("Resolve(%s) = %v, want ErrPending", uid, err)
		}
	}
	if _, err := r.Resolve(context.Background(), "c", 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("third load = %v, want ErrBusy", err)
	}
	// Joining a running load is still allowed.
	if _, err := r.Resolve(context.Background(), "a", 0); !errors.Is(err, ErrPending) {
		t.Fatalf("joining a = %v, want ErrPending", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("loader called %d times, want 2", n)
	}

	close(release)
	for _, uid := range []string{"a", "b"} {
		if _, err := r.Resolve(context.Background(), uid, time.Second); err != nil {
			t.Fatalf("Resolve(%s) failed: %v", uid, err)
		}
	}
	post, err := r.Resolve(context.Background(), "c", time.Second)
	if err != nil {
		t.Fatalf("Resolve(c) after loads finished: %v", err)
	}
	if post.UID != "c" {
		t.Errorf("UID = %q", post.UID)
	}
}

func TestResolverSweeperStops(t *testing.T) {
	r := NewResolver(func(ctx context.Context, uid string) (cms.PostDetail, error) {
		return cms.PostDetail{}, cms.ErrNotFound
	}, time.Second, &testLogger{})
	r.Resolve(context.Background(), "gone", time.Second)

	later := time.Now().Add(resolvedTTL)
	r.mu.Lock()
	r.now = func() time.Time { return later }
	r.mu.Unlock()

	stop := r.StartSweeper(5 * time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	stop()
	if r.Len() != 0 {
		t.Error("sweeper should have removed the finished resolution")
	}
}
