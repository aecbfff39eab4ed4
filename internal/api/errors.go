package api

import (
	"errors"
	"net/http"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/control"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/realtime"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ToStatus maps a domain error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, control.ErrUnknownMessage):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, credential.ErrNotFound), errors.Is(err, backend.ErrUnauthenticated):
		return grpcstatus.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, realtime.ErrNotConnected):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.As(err, &apiErr):
		return grpcstatus.Error(httpCode(apiErr.Status), err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

func httpCode(status int) codes.Code {
	switch {
	case status == http.StatusUnauthorized:
		return codes.Unauthenticated
	case status == http.StatusForbidden:
		return codes.PermissionDenied
	case status == http.StatusNotFound:
		return codes.NotFound
	case status >= 500:
		return codes.Unavailable
	case status >= 400:
		return codes.InvalidArgument
	default:
		return codes.FailedPrecondition
	}
}
