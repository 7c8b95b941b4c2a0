package testutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()
	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildSharesRecord(t *testing.T) {
	logger := testutil.NewMockLogger()
	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).With(logging.Int("n", 2)).Warn("child")

	msg, ok := logger.Find("warn", "child")
	require.True(t, ok)
	id, _ := msg.Field("request_id")
	assert.Equal(t, "req-1", id)
	n, _ := msg.Field("n")
	assert.Equal(t, 2, n)
}
