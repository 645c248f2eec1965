package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedis_Consume(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 3; i++ {
		allowed, err := r.Consume(ctx, "key", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := r.Consume(ctx, "key", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRedis_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer r.Close()

	allowed, err := r.Consume(ctx, "key", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = r.Consume(ctx, "key", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(61 * time.Second)

	allowed, err = r.Consume(ctx, "key", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
}
