package asset

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestHandleThenAfterResolve(t *testing.T) {
	h := Resolved(42, nil)
	if !h.Ready() {
		t.Fatal("resolved handle not ready")
	}
	var got int
	h.Then(func(v int, err error) {
		if err != nil {
			t.Error(err)
		}
		got = v
	})
	if got != 42 {
		t.Errorf("continuation on resolved handle must run immediately, got %d", got)
	}
}

func TestHandleContinuationsRunOnce(t *testing.T) {
	release := make(chan struct{})
	h := Go(context.Background(), func(context.Context) (string, error) {
		<-release
		return "ok", nil
	})
	if h.Ready() {
		t.Fatal("handle ready before its work finished")
	}
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		h.Then(func(v string, err error) {
			if v != "ok" {
				t.Errorf("continuation got %q", v)
			}
			calls.Add(1)
		})
	}
	close(release)
	v, err := h.Wait(context.Background())
	if err != nil || v != "ok" {
		t.Fatalf("Wait = %q, %v", v, err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("%d continuations ran, want 3", n)
	}
	if h.resolve("again", nil) {
		t.Error("second resolution must be ignored")
	}
	if v, _ = h.Result(); v != "ok" {
		t.Errorf("result changed to %q", v)
	}
}

func TestHandleThenOrder(t *testing.T) {
	release := make(chan struct{})
	h := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	var order []int
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		i := i
		h.Then(func(int, error) {
			order = append(order, i)
			if i == 3 {
				close(done)
			}
		})
	}
	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuations did not run")
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("continuations ran in order %v", order)
		}
	}
}

func TestHandleCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	finished := make(chan struct{})
	h := Go(ctx, func(context.Context) (int, error) {
		<-release
		defer close(finished)
		return 7, nil
	})
	results := make(chan error, 2)
	h.Then(func(v int, err error) {
		if v != 0 {
			t.Errorf("cancelled handle value %d", v)
		}
		results <- err
	})
	cancel()
	select {
	case err := <-results:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("want context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not resolve handle")
	}
	close(release)
	<-finished
	time.Sleep(10 * time.Millisecond)
	if len(results) != 0 {
		t.Error("late result must not run continuations")
	}
	if _, err := h.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("result error %v", err)
	}
}

func TestHandleError(t *testing.T) {
	boom := errors.New("boom")
	h := Go(context.Background(), func(context.Context) (int, error) { return 0, boom })
	if _, err := h.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("want %v, got %v", boom, err)
	}
}

func TestHandleWaitTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	h := Go(context.Background(), func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want deadline exceeded, got %v", err)
	}
	if h.Ready() {
		t.Error("handle ready after Wait timed out")
	}
}
