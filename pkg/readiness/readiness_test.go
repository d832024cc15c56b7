package readiness

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(3)
	assert.False(t, r.AllReady())

	r.MarkReady(0)
	r.MarkReady(2)
	assert.Equal(t, []int{0, 2}, r.Ready())
	assert.False(t, r.AllReady())

	r.MarkReady(1)
	assert.True(t, r.AllReady())

	r.MarkDown(1)
	assert.False(t, r.IsReady(1))
	assert.False(t, r.AllReady())
}

func TestWaitReturnsOnceReady(t *testing.T) {
	var flips atomic.Int32
	pred := func() bool { return flips.Add(1) >= 3 }

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, Wait(ctx, pred, time.Millisecond))
	assert.GreaterOrEqual(t, flips.Load(), int32(3))
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Wait(ctx, func() bool { return false }, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitNilPredicate(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), nil, time.Millisecond))
}
