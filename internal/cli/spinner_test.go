package cli

import (
	"context"
	"testing"
	"time"
)

func TestSpinnerBasic(t *testing.T) {
	s := newSpinner("Installing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Installing with context...")
	s.Start()

	// Cancel the context and give the goroutine time to notice
	cancel()
	time.Sleep(100 * time.Millisecond)

	select {
	case <-s.stopped:
	default:
		t.Error("spinner goroutine should exit on context cancellation")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Stopping twice...")
	s.Start()

	// Stop multiple times should not panic
	s.Stop()
	s.Stop()
}

func TestSpinnerStopBeforeFirstFrame(t *testing.T) {
	// Stop immediately after start, before the first tick fires
	s := newSpinner("Quick...")
	s.Start()
	s.Stop()
}
