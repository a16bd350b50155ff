package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
)

func loggerFromContext(ctx context.Context) *logrus.Entry {
	return composables.UseLogger(ctx)
}

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}

// logRejected emits a WARN line for business rejections only; infrastructure
// errors are logged by the transport.
func logRejected(ctx context.Context, operation string, actorID uuid.UUID, entityID uuid.UUID, effectiveDate time.Time, err error, extra logrus.Fields) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return
	}

	fields := logrus.Fields{
		"request_id": composables.UseRequestID(ctx),
		"operation":  operation,
		"error_code": svcErr.Code,
	}
	if !effectiveDate.IsZero() {
		fields["effective_date"] = effectiveDate.UTC().Format(time.RFC3339)
	}
	if actorID != uuid.Nil {
		fields["actor_id"] = actorID.String()
	}
	if entityID != uuid.Nil {
		fields["entity_id"] = entityID.String()
	}
	for k, v := range svcErr.Meta {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}

	logWithFields(ctx, logrus.WarnLevel, "org.assignment.rejected", fields)
}

func logCommitted(ctx context.Context, operation string, actorID uuid.UUID, a *Assignment, extra logrus.Fields) {
	fields := logrus.Fields{
		"request_id":    composables.UseRequestID(ctx),
		"operation":     operation,
		"actor_id":      actorID.String(),
		"assignment_id": a.ID.String(),
		"position_id":   a.PositionID.String(),
		"person_id":     a.PersonID.String(),
		"is_plt":        a.IsPlt,
		"status":        a.Status,
	}
	for k, v := range extra {
		fields[k] = v
	}
	logWithFields(ctx, logrus.InfoLevel, "org.assignment.committed", fields)
}
