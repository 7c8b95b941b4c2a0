package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/testutil"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(ClientConfig{Addr: mr.Addr(), KeyPrefix: "medsimplify:"}, testutil.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Success(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NotNil(t, c.Underlying())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, err := NewClient(ClientConfig{Addr: addr}, nil)
	assert.Nil(t, c)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestClient_Key(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, "medsimplify:ratelimit:10.0.0.1", c.Key("ratelimit", "10.0.0.1"))
}

func TestClient_CloseTwice(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClientClosed)
}
