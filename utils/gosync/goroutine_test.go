package gosync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), "panic", func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)
	Go(ctx, "wait", func(ctx context.Context) {
		<-ctx.Done()
		got <- ctx.Err()
	})
	cancel()
	assert.ErrorIs(t, <-got, context.Canceled)
}
