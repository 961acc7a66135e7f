package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/vibein/vibechat/internal/backend"
	"github.com/vibein/vibechat/internal/inbox"
	"github.com/vibein/vibechat/internal/push"
	"github.com/vibein/vibechat/internal/store"
	"github.com/vibein/vibechat/internal/thread"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	var se *backend.StatusError
	switch {
	case errors.Is(err, thread.ErrEmpty), errors.Is(err, push.ErrMalformed):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, thread.ErrNotFailed), errors.Is(err, thread.ErrInFlight),
		errors.Is(err, thread.ErrConfirmed), errors.Is(err, inbox.ErrNoRequest):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, thread.ErrClosed):
		return grpcstatus.Error(codes.Aborted, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &se):
		switch se.HTTPStatus {
		case http.StatusUnauthorized, http.StatusForbidden:
			return grpcstatus.Error(codes.Unauthenticated, backend.UserMessage(err))
		case http.StatusNotFound:
			return grpcstatus.Error(codes.NotFound, backend.UserMessage(err))
		}
		return grpcstatus.Error(codes.Unavailable, backend.UserMessage(err))
	}
	return grpcstatus.Error(codes.Internal, err.Error())
}

func invalid(format string, args ...any) error {
	return grpcstatus.Errorf(codes.InvalidArgument, format, args...)
}
