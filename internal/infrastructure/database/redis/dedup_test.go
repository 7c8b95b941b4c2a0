package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicator_ClaimOnce(t *testing.T) {
	c, mr := newTestClient(t)
	d := NewDeduplicator(c, time.Hour)
	ctx := context.Background()

	first, err := d.Claim(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.Claim(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, second)

	assert.True(t, mr.Exists("medsimplify:submission:sub-1"))

	require.NoError(t, d.Release(ctx, "sub-1"))
	again, err := d.Claim(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestDeduplicator_EmptyIDAlwaysClaims(t *testing.T) {
	c, _ := newTestClient(t)
	d := NewDeduplicator(c, 0)
	ok, err := d.Claim(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, d.Release(context.Background(), ""))
}

func TestDeduplicator_ClaimExpires(t *testing.T) {
	c, mr := newTestClient(t)
	d := NewDeduplicator(c, time.Minute)
	ctx := context.Background()

	_, err := d.Claim(ctx, "sub-2")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := d.Claim(ctx, "sub-2")
	require.NoError(t, err)
	assert.True(t, ok)
}
