package grpc

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want codes.Code
	}{
		{errors.ErrCodeSimplifyEmptyInput, codes.InvalidArgument},
		{errors.ErrCodeSimplifyTextTooLong, codes.InvalidArgument},
		{errors.ErrCodeUnsupportedMedia, codes.InvalidArgument},
		{errors.ErrCodeSimplifyUnreadable, codes.InvalidArgument},
		{errors.ErrCodeKBTestNotFound, codes.NotFound},
		{errors.ErrCodeTooManyRequests, codes.ResourceExhausted},
		{errors.ErrCodePayloadTooLarge, codes.ResourceExhausted},
		{errors.ErrCodeKBSourceUnavailable, codes.Unavailable},
		{errors.ErrCodeTimeout, codes.DeadlineExceeded},
		{errors.ErrCodeInternal, codes.Internal},
		{errors.ErrorCode("NOPE_999"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFor(tt.code))
		})
	}
}

func TestToStatus_RoundTrip(t *testing.T) {
	err := ToStatus(errors.New(errors.ErrCodeSimplifyTextTooLong, "text too long").WithDetail("20001 > 20000"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	back := FromStatus(err)
	require.NotNil(t, back)
	assert.Equal(t, errors.ErrCodeSimplifyTextTooLong, back.Code)
	assert.Equal(t, "text too long", back.Message)
	assert.Equal(t, "20001 > 20000", back.Detail)
}

func TestToStatus_MasksServerErrors(t *testing.T) {
	err := ToStatus(errors.Wrap(fmt.Errorf("disk on fire"), errors.ErrCodeInternal, "write cache"))
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal server error", st.Message())

	back := FromStatus(err)
	assert.Equal(t, errors.ErrCodeInternal, back.Code)
	assert.Empty(t, back.Detail)
}

func TestToStatus_Passthrough(t *testing.T) {
	assert.Nil(t, ToStatus(nil))

	orig := status.Error(codes.Aborted, "aborted")
	assert.Equal(t, orig, ToStatus(orig))

	assert.Equal(t, codes.Canceled, status.Code(ToStatus(context.Canceled)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(ToStatus(fmt.Errorf("wrapped: %w", context.DeadlineExceeded))))
	assert.Equal(t, codes.Internal, status.Code(ToStatus(fmt.Errorf("plain"))))
}

func TestFromStatus_Foreign(t *testing.T) {
	assert.Nil(t, FromStatus(nil))

	e := FromStatus(status.Error(codes.Unavailable, "connection refused"))
	assert.Equal(t, errors.ErrCodeExternalService, e.Code)
	assert.Equal(t, "Unavailable", e.Detail)

	e = FromStatus(fmt.Errorf("not a status"))
	assert.Equal(t, errors.ErrCodeExternalService, e.Code)
}
