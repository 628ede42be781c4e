package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunnerRunsJobWithBaseContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(zap.NewNop(), ctx)

	var runs atomic.Int32
	got := make(chan context.Context, 1)
	_, err := r.Add("tick", "* * * * * *", func(jobCtx context.Context) {
		if runs.Add(1) == 1 {
			got <- jobCtx
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Entries())

	r.Start()
	defer r.Stop()

	select {
	case jobCtx := <-got:
		assert.Equal(t, ctx, jobCtx)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Add("bad", "not a spec", func(context.Context) {})
	assert.Error(t, err)
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	done := make(chan struct{}, 4)
	_, err := r.Add("boom", "* * * * * *", func(context.Context) {
		defer func() { done <- struct{}{} }()
		panic("boom")
	})
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
