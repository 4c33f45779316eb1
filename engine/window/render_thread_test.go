package window

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderThreadRunsInSubmissionOrder(t *testing.T) {
	rt, err := NewRenderThread("order", nil, nil)
	require.NoError(t, err)
	defer rt.Stop()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := range 100 {
		if i%3 == 0 {
			require.NoError(t, rt.DoSync(func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			}))
			continue
		}
		rt.DoAsync(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	require.NoError(t, rt.DoSync(func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestRenderThreadDoSyncReturnsActionError(t *testing.T) {
	rt, err := NewRenderThread("errors", nil, nil)
	require.NoError(t, err)
	defer rt.Stop()

	boom := errors.New("boom")
	assert.ErrorIs(t, rt.DoSync(func() error { return boom }), boom)
}

func TestRenderThreadRecoversPanics(t *testing.T) {
	rt, err := NewRenderThread("panics", nil, nil)
	require.NoError(t, err)
	defer rt.Stop()

	err = rt.DoSync(func() error { panic("sync failure") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failure")

	rt.DoAsync(func() { panic("async failure") })
	assert.NoError(t, rt.DoSync(func() error { return nil }), "thread must survive an async panic")
}

func TestRenderThreadSetupFailure(t *testing.T) {
	cause := errors.New("no context")
	teardownRan := false
	rt, err := NewRenderThread("setup", func() error { return cause }, func() { teardownRan = true })

	assert.Nil(t, rt)
	assert.ErrorIs(t, err, cause)
	assert.False(t, teardownRan)
}

func TestRenderThreadStopDrainsQueue(t *testing.T) {
	var ran []string
	rt, err := NewRenderThread("drain", nil, func() { ran = append(ran, "teardown") })
	require.NoError(t, err)

	block := make(chan struct{})
	rt.DoAsync(func() { <-block })
	rt.DoAsync(func() { ran = append(ran, "first") })
	rt.DoAsync(func() { ran = append(ran, "second") })
	close(block)
	rt.Stop()
	rt.Stop()

	assert.Equal(t, []string{"first", "second", "teardown"}, ran)
	assert.ErrorIs(t, rt.DoSync(func() error { return nil }), common.ErrSessionClosed)
	rt.DoAsync(func() { t.Error("async action ran after stop") })
}
