package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/jsondiff"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
)

type AuditAction string

const (
	AuditCreate               AuditAction = "CREATE"
	AuditUpdate               AuditAction = "UPDATE"
	AuditDelete               AuditAction = "DELETE"
	AuditOrganizationalChange AuditAction = "ORGANIZATIONAL_CHANGE"
)

// AuditEvent is published on the event bus after a successful commit.
type AuditEvent struct {
	RequestID  string
	OccurredAt time.Time
	ActorID    uuid.UUID
	Action     AuditAction
	EntityType EntityType
	EntityID   uuid.UUID
	// ChangeType is set for organizational changes, e.g. TRANSFER.
	ChangeType string
	OldValues  any
	NewValues  any
	Meta       map[string]any
}

func (e AuditEvent) MarshalOldValues() (string, bool, error) {
	return marshalAuditValues(e.OldValues)
}

func (e AuditEvent) MarshalNewValues() (string, bool, error) {
	return marshalAuditValues(e.NewValues)
}

// Changes is the RFC 6902 patch turning OldValues into NewValues. It is nil
// unless both sides are set.
func (e AuditEvent) Changes() (jsondiff.Patch, error) {
	if e.OldValues == nil || e.NewValues == nil {
		return nil, nil
	}
	return jsondiff.Compare(e.OldValues, e.NewValues)
}

// MarshalMeta encodes Meta, adding the old-to-new patch under "changes".
func (e AuditEvent) MarshalMeta() (string, bool, error) {
	changes, err := e.Changes()
	if err != nil {
		return "", false, err
	}
	if len(e.Meta) == 0 && len(changes) == 0 {
		return "", false, nil
	}
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	if len(changes) > 0 {
		meta["changes"] = changes
	}
	return marshalAuditValues(meta)
}

func marshalAuditValues(v any) (string, bool, error) {
	if v == nil {
		return "", false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// AuditSink persists audit records.
type AuditSink interface {
	LogCreate(ctx context.Context, ev *AuditEvent) error
	LogUpdate(ctx context.Context, ev *AuditEvent) error
	LogOrganizationalChange(ctx context.Context, ev *AuditEvent) error
}

// AuditSubscriber adapts a sink into an event bus handler.
func AuditSubscriber(sink AuditSink) func(ctx context.Context, ev *AuditEvent) error {
	return func(ctx context.Context, ev *AuditEvent) error {
		switch ev.Action {
		case AuditCreate:
			return sink.LogCreate(ctx, ev)
		case AuditOrganizationalChange:
			return sink.LogOrganizationalChange(ctx, ev)
		default:
			return sink.LogUpdate(ctx, ev)
		}
	}
}

type auditor struct {
	bus     eventbus.EventBusWithError
	now     Clock
	timeout time.Duration
}

// record publishes after commit. Failures are logged and counted, never
// returned: the business write has already happened.
func (a auditor) record(ctx context.Context, events ...*AuditEvent) {
	if a.bus == nil {
		return
	}
	auditCtx := context.WithoutCancel(ctx)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		auditCtx, cancel = context.WithTimeout(auditCtx, a.timeout)
		defer cancel()
	}
	for _, ev := range events {
		if ev.RequestID == "" {
			ev.RequestID = composables.UseRequestID(ctx)
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = a.now()
		}
		if err := a.bus.PublishE(auditCtx, ev); err != nil {
			orgAuditFailures.Inc()
			logWithFields(ctx, logrus.ErrorLevel, "org.audit.failed", logrus.Fields{
				"request_id":  ev.RequestID,
				"action":      ev.Action,
				"entity_type": ev.EntityType,
				"entity_id":   ev.EntityID.String(),
				"error":       err.Error(),
			})
		}
	}
}
