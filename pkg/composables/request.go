package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoLogger = errors.New("logger not found")
	ErrNoActor  = errors.New("actor not found")
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// UseLogger returns the request-scoped logger or nil.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(loggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

// WithActor binds the user profile id performing the request.
func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

func UseActor(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(actorKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey, id)
}

func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestKey).(string)
	return id
}
