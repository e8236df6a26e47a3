package grpcapi

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

var codeMappings = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrNotFound, codes.NotFound},
	{domain.ErrGone, codes.NotFound},
	{domain.ErrAlreadyLocked, codes.FailedPrecondition},
	{domain.ErrConflict, codes.FailedPrecondition},
	{domain.ErrListingNotLocked, codes.FailedPrecondition},
	{domain.ErrInvalidTransition, codes.FailedPrecondition},
	{domain.ErrDuplicateKey, codes.AlreadyExists},
	{domain.ErrStaleVersion, codes.Aborted},
	{domain.ErrSelfLockForbidden, codes.PermissionDenied},
	{domain.ErrForbidden, codes.PermissionDenied},
	{domain.ErrInvalidInput, codes.InvalidArgument},
}

func toStatus(method string, err error) error {
	for _, m := range codeMappings {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	slog.Error("grpc call failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}
