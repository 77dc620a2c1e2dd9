package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepUntilDone polls the runner until it reports done, failing the test if
// it never does.
func stepUntilDone(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.Step() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task did not finish in time")
}

func TestStep_BeforeStart(t *testing.T) {
	r := NewRunner(context.Background(), "noop", func(ctx context.Context) error { return nil })
	assert.False(t, r.Step(), "a task that was never started is never done")
}

func TestRunner_Success(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner(context.Background(), "gated", func(ctx context.Context) error {
		<-release
		return nil
	})
	r.Start(0)

	assert.False(t, r.Step(), "task is still blocked")
	assert.False(t, r.Step(), "repeated polling stays false while blocked")

	close(release)
	stepUntilDone(t, r)
	assert.True(t, r.Step(), "done stays done")
	assert.NoError(t, r.Err())
}

func TestRunner_Error(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner(context.Background(), "failing", func(ctx context.Context) error {
		return boom
	})
	r.Start(0)

	stepUntilDone(t, r)
	assert.ErrorIs(t, r.Err(), boom)
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Start(10 * time.Millisecond)

	stepUntilDone(t, r)
	assert.ErrorIs(t, r.Err(), context.DeadlineExceeded)
}

func TestRunner_Cancel(t *testing.T) {
	r := NewRunner(context.Background(), "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Start(0)
	r.Cancel()

	stepUntilDone(t, r)
	assert.ErrorIs(t, r.Err(), context.Canceled)
}

func TestRunner_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, "parent-scoped", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Start(time.Hour)
	cancel()

	stepUntilDone(t, r)
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), context.Canceled)
}

func TestErr_BeforeDone(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := NewRunner(context.Background(), "gated", func(ctx context.Context) error {
		<-release
		return errors.New("later")
	})
	r.Start(0)
	assert.NoError(t, r.Err(), "Err is nil until Step has returned true")
}
