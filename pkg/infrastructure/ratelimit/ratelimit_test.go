package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedDelay_FirstCallDoesNotBlock(t *testing.T) {
	fd := NewFixedDelay(time.Second)

	start := time.Now()
	if err := fd.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait blocked for %v, expected no delay", elapsed)
	}
}

func TestFixedDelay_EnforcesDelayBetweenCalls(t *testing.T) {
	delay := 50 * time.Millisecond
	fd := NewFixedDelay(delay)

	if err := fd.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	start := time.Now()
	if err := fd.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("second Wait blocked for %v, expected at least %v", elapsed, delay)
	}
}

func TestFixedDelay_ContextCancellation(t *testing.T) {
	fd := NewFixedDelay(10 * time.Second)

	if err := fd.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := fd.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait with cancelled context = %v, want context.DeadlineExceeded", err)
	}
}
