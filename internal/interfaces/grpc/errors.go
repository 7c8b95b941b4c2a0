package grpc

import (
	"context"
	stderrors "errors"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// ErrorDomain is the ErrorInfo domain attached to every mapped status.
const ErrorDomain = "medsimplify"

var httpToGRPC = map[int]codes.Code{
	http.StatusBadRequest:            codes.InvalidArgument,
	http.StatusUnauthorized:          codes.Unauthenticated,
	http.StatusForbidden:             codes.PermissionDenied,
	http.StatusNotFound:              codes.NotFound,
	http.StatusConflict:              codes.AlreadyExists,
	http.StatusRequestEntityTooLarge: codes.ResourceExhausted,
	http.StatusUnsupportedMediaType:  codes.InvalidArgument,
	http.StatusUnprocessableEntity:   codes.InvalidArgument,
	http.StatusTooManyRequests:       codes.ResourceExhausted,
	http.StatusNotImplemented:        codes.Unimplemented,
	http.StatusServiceUnavailable:    codes.Unavailable,
	http.StatusGatewayTimeout:        codes.DeadlineExceeded,
}

// CodeFor maps an application error code to a gRPC code.
func CodeFor(code errors.ErrorCode) codes.Code {
	if c, ok := httpToGRPC[errors.HTTPStatusForCode(code)]; ok {
		return c
	}
	return codes.Internal
}

// ToStatus converts err into a gRPC status error. The application code and
// detail travel in an ErrorInfo so clients can rebuild the AppError. Server
// errors have their message replaced by the code's default.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "unexpected error")
	}

	msg := appErr.Message
	info := &errdetails.ErrorInfo{Reason: string(appErr.Code), Domain: ErrorDomain}
	if errors.IsServerError(appErr.Code) {
		msg = errors.DefaultMessageForCode(appErr.Code)
	} else if appErr.Detail != "" {
		info.Metadata = map[string]string{"detail": appErr.Detail}
	}

	st := status.New(CodeFor(appErr.Code), msg)
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// FromStatus rebuilds an AppError from a status produced by ToStatus. Errors
// without an ErrorInfo map to COMMON_014.
func FromStatus(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.Wrap(err, errors.ErrCodeExternalService, "grpc call failed")
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			appErr := errors.New(errors.ErrorCode(info.GetReason()), st.Message())
			if detail := info.GetMetadata()["detail"]; detail != "" {
				appErr = appErr.WithDetail(detail)
			}
			return appErr
		}
	}
	return errors.New(errors.ErrCodeExternalService, st.Message()).WithDetail(st.Code().String())
}
