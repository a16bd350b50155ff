package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
)

// AuditRepository writes audit_logs rows. It is a services.AuditSink and runs
// outside the business transaction.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

var _ services.AuditSink = (*AuditRepository)(nil)

func (r *AuditRepository) LogCreate(ctx context.Context, ev *services.AuditEvent) error {
	return r.insert(ctx, ev)
}

func (r *AuditRepository) LogUpdate(ctx context.Context, ev *services.AuditEvent) error {
	return r.insert(ctx, ev)
}

func (r *AuditRepository) LogOrganizationalChange(ctx context.Context, ev *services.AuditEvent) error {
	if ev.ChangeType == "" {
		return errors.New("organizational change requires a change type")
	}
	return r.insert(ctx, ev)
}

func (r *AuditRepository) insert(ctx context.Context, ev *services.AuditEvent) error {
	if ev == nil {
		return errors.New("audit event is nil")
	}
	if ev.ActorID == uuid.Nil || ev.EntityID == uuid.Nil || ev.Action == "" {
		return errors.New("audit event is missing actor, entity or action")
	}

	oldValues, oldOK, err := ev.MarshalOldValues()
	if err != nil {
		return errors.Wrap(err, "marshal old values")
	}
	newValues, newOK, err := ev.MarshalNewValues()
	if err != nil {
		return errors.Wrap(err, "marshal new values")
	}
	meta, metaOK, err := ev.MarshalMeta()
	if err != nil {
		return errors.Wrap(err, "marshal meta")
	}
	if !metaOK {
		meta = "{}"
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	changeType := pgNullableText(nil)
	if ev.ChangeType != "" {
		changeType = pgNullableText(&ev.ChangeType)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO audit_logs (
	request_id,
	occurred_at,
	actor_id,
	action,
	entity_type,
	entity_id,
	change_type,
	old_values,
	new_values,
	meta
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb)`,
		ev.RequestID,
		ev.OccurredAt.UTC(),
		pgUUID(ev.ActorID),
		string(ev.Action),
		string(ev.EntityType),
		pgUUID(ev.EntityID),
		changeType,
		jsonbOrNull(oldValues, oldOK),
		jsonbOrNull(newValues, newOK),
		meta,
	); err != nil {
		return errors.Wrap(err, "insert audit log")
	}
	return nil
}
