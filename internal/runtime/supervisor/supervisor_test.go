package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitReturnsFirstError(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	want := errors.New("boom")
	s.Go("worker", func(ctx context.Context) error { return want })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, want) {
		t.Fatalf("Wait = %v, want %v", err, want)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go("panicky", func(ctx context.Context) error { panic("oops") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestCancelOnErrorStopsSiblings(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go("failing", func(ctx context.Context) error { return errors.New("fail fast") })
	s.Go("blocked", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Fatal("expected error")
	}
}

func TestStopCancelsAndWaits(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	done := make(chan struct{})
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop = %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("goroutine not finished after Stop")
	}
}
