package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/session"
)

// toStatus maps a use-case error to a gRPC status. Internal failures are
// logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	var hsErr *session.HandshakeError
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrEmptyInput), errors.Is(err, common.ErrInvalidSetting):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotAuthorized),
		errors.Is(err, common.ErrHandshakeInProgress),
		errors.Is(err, common.ErrMonitoringActive),
		errors.Is(err, common.ErrMonitoringInactive),
		errors.Is(err, common.ErrNothingPending),
		errors.As(err, &hsErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}
