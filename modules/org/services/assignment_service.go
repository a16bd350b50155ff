package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/capacity"
)

// AssignmentService is the only writer of assignment rows. Each operation
// runs access control, then validation and the write in one transaction,
// then audit after commit.
type AssignmentService struct {
	repo      Repository
	tx        Transactor
	access    AccessControl
	validator *AssignmentValidator
	audit     auditor
	now       Clock
	tracer    trace.Tracer
}

func NewAssignmentService(repo Repository, tx Transactor, access AccessControl, opts ...Option) *AssignmentService {
	o := buildOptions(opts)
	return &AssignmentService{
		repo:      repo,
		tx:        tx,
		access:    access,
		validator: NewAssignmentValidator(repo, access, o.policy, o.now),
		audit:     o.auditor(),
		now:       o.now,
		tracer:    o.tracer,
	}
}

func (s *AssignmentService) Validator() *AssignmentValidator { return s.validator }

func (s *AssignmentService) startSpan(ctx context.Context, op string, actorID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("org.operation", op), attribute.String("org.actor_id", actorID.String()))
	return s.tracer.Start(ctx, "org.assignment."+op, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if kind := KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("org.error_code", string(kind)))
		}
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Assign creates a new active assignment.
func (s *AssignmentService) Assign(ctx context.Context, req AssignmentRequest, actorID uuid.UUID) (out *Assignment, err error) {
	ctx, span := s.startSpan(ctx, "assign", actorID, attribute.String("org.position_id", req.PositionID.String()))
	defer func() {
		recordOperation("assign", err)
		logRejected(ctx, "assign", actorID, req.PositionID, req.StartDate, err, logrus.Fields{"person_id": req.PersonID.String(), "is_plt": req.IsPlt})
		finishSpan(span, err)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req = normalizeAssignmentRequest(req)
	if _, err := checkAccess(ctx, s.access, actorID, EntityPosition, req.PositionID, OpCreate); err != nil {
		return nil, err
	}

	created, err := inTx(ctx, s.tx, func(txCtx context.Context) (*Assignment, error) {
		return s.createValidated(txCtx, req, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, &AuditEvent{
		ActorID:    actorID,
		Action:     AuditCreate,
		EntityType: EntityAssignment,
		EntityID:   created.ID,
		NewValues:  created,
	})
	logCommitted(ctx, "assign", actorID, created, nil)
	return created, nil
}

func (s *AssignmentService) createValidated(ctx context.Context, req AssignmentRequest, actorID uuid.UUID) (*Assignment, error) {
	if _, err := s.validator.ValidateAssignment(ctx, req); err != nil {
		return nil, err
	}
	if req.AppointedBy != nil {
		if err := s.validator.ValidateAppointer(ctx, *req.AppointedBy, req.PositionID); err != nil {
			return nil, err
		}
	}
	return s.repo.InsertAssignment(ctx, AssignmentInsert{
		ID:          uuid.New(),
		PersonID:    req.PersonID,
		PositionID:  req.PositionID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		IsPlt:       req.IsPlt,
		AppointedBy: req.AppointedBy,
		SKNumber:    req.SKNumber,
		Notes:       req.Notes,
		CreatedBy:   actorID,
	})
}

// Terminate ends an active assignment.
func (s *AssignmentService) Terminate(ctx context.Context, req TerminationRequest, actorID uuid.UUID) (out *Assignment, err error) {
	ctx, span := s.startSpan(ctx, "terminate", actorID, attribute.String("org.assignment_id", req.AssignmentID.String()))
	defer func() {
		recordOperation("terminate", err)
		logRejected(ctx, "terminate", actorID, req.AssignmentID, req.EndDate, err, nil)
		finishSpan(span, err)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.EndDate = req.EndDate.UTC()
	if _, err := checkAccess(ctx, s.access, actorID, EntityAssignment, req.AssignmentID, OpUpdate); err != nil {
		return nil, err
	}

	type result struct{ before, after *Assignment }
	res, err := inTx(ctx, s.tx, func(txCtx context.Context) (result, error) {
		current, err := s.validator.ValidateTermination(txCtx, req)
		if err != nil {
			return result{}, err
		}
		note := fmt.Sprintf("Terminated effective %s", dateOnly(req.EndDate))
		if req.Reason != nil && strings.TrimSpace(*req.Reason) != "" {
			note += ": " + strings.TrimSpace(*req.Reason)
		}
		closed, err := s.repo.CloseAssignment(txCtx, AssignmentClose{
			ID:      current.ID,
			EndDate: req.EndDate,
			Status:  StatusTerminated,
			Notes:   appendNote(current.Notes, note),
		})
		if err != nil {
			return result{}, err
		}
		return result{before: current, after: closed}, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, &AuditEvent{
		ActorID:    actorID,
		Action:     AuditUpdate,
		EntityType: EntityAssignment,
		EntityID:   res.after.ID,
		OldValues:  res.before,
		NewValues:  res.after,
		Meta:       map[string]any{"change_type": "TERMINATE"},
	})
	logCommitted(ctx, "terminate", actorID, res.after, nil)
	return res.after, nil
}

// Transfer closes an active assignment one instant before the transfer
// date and opens a new one at the transfer date. The new assignment is
// validated as a fresh assignment with the old one already closed; both
// writes share one transaction.
func (s *AssignmentService) Transfer(ctx context.Context, req TransferRequest, actorID uuid.UUID) (out *Assignment, err error) {
	ctx, span := s.startSpan(ctx, "transfer", actorID,
		attribute.String("org.assignment_id", req.AssignmentID.String()),
		attribute.String("org.position_id", req.NewPositionID.String()),
	)
	defer func() {
		recordOperation("transfer", err)
		logRejected(ctx, "transfer", actorID, req.AssignmentID, req.TransferDate, err, logrus.Fields{"new_position_id": req.NewPositionID.String()})
		finishSpan(span, err)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.TransferDate = req.TransferDate.UTC()
	if req.EndDate != nil {
		end := req.EndDate.UTC()
		req.EndDate = &end
	}
	uc, err := checkAccess(ctx, s.access, actorID, EntityAssignment, req.AssignmentID, OpUpdate)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.CanAccessRecord(ctx, uc, EntityPosition, req.NewPositionID, OpCreate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newServiceError(KindAccessDenied, "access denied: create position_assignment on target position", nil).
			with("entity_id", req.NewPositionID.String())
	}

	type result struct{ before, closed, created *Assignment }
	res, err := inTx(ctx, s.tx, func(txCtx context.Context) (result, error) {
		current, err := s.validator.activeAssignment(txCtx, req.AssignmentID)
		if err != nil {
			return result{}, err
		}
		closeAt := req.TransferDate.Add(-time.Millisecond)
		if !closeAt.After(current.StartDate) {
			return result{}, newServiceError(KindInvalidDateRange, "transfer date must be after the current assignment start date", nil).
				with("start_date", dateOnly(current.StartDate))
		}

		target := req.NewPositionID.String()
		if p, err := s.repo.FindPosition(txCtx, req.NewPositionID); err != nil {
			return result{}, err
		} else if p != nil {
			target = p.Code
		}

		closed, err := s.repo.CloseAssignment(txCtx, AssignmentClose{
			ID:      current.ID,
			EndDate: closeAt,
			Status:  StatusTransferred,
			Notes:   appendNote(current.Notes, "Transferred to "+target),
		})
		if err != nil {
			return result{}, err
		}

		created, err := s.createValidated(txCtx, AssignmentRequest{
			PersonID:    current.PersonID,
			PositionID:  req.NewPositionID,
			StartDate:   req.TransferDate,
			EndDate:     req.EndDate,
			IsPlt:       req.IsPlt,
			AppointedBy: req.AppointedBy,
			SKNumber:    req.SKNumber,
			Notes:       req.Notes,
		}, actorID)
		if err != nil {
			return result{}, err
		}
		return result{before: current, closed: closed, created: created}, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx,
		&AuditEvent{
			ActorID:    actorID,
			Action:     AuditUpdate,
			EntityType: EntityAssignment,
			EntityID:   res.closed.ID,
			OldValues:  res.before,
			NewValues:  res.closed,
			Meta:       map[string]any{"change_type": "TRANSFER_OUT"},
		},
		&AuditEvent{
			ActorID:    actorID,
			Action:     AuditCreate,
			EntityType: EntityAssignment,
			EntityID:   res.created.ID,
			NewValues:  res.created,
			Meta:       map[string]any{"change_type": "TRANSFER_IN"},
		},
		&AuditEvent{
			ActorID:    actorID,
			Action:     AuditOrganizationalChange,
			EntityType: EntityAssignment,
			EntityID:   res.created.ID,
			ChangeType: "TRANSFER",
			OldValues:  res.closed,
			NewValues:  res.created,
		},
	)
	logCommitted(ctx, "transfer", actorID, res.created, logrus.Fields{"previous_assignment_id": res.closed.ID.String()})
	return res.created, nil
}

// ListHolders returns every assignment of a position classified as of now.
func (s *AssignmentService) ListHolders(ctx context.Context, positionID uuid.UUID, actorID uuid.UUID) (*PositionHolders, error) {
	if _, err := checkAccess(ctx, s.access, actorID, EntityPosition, positionID, OpRead); err != nil {
		return nil, err
	}
	pos, err := s.repo.FindPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, newServiceError(KindPositionNotFound, "position not found", nil).with("position_id", positionID.String())
	}
	rows, err := s.repo.ListPositionAssignments(ctx, positionID)
	if err != nil {
		return nil, err
	}
	holders := make([]capacity.Holder, 0, len(rows))
	for _, a := range rows {
		holders = append(holders, a.holder())
	}
	now := s.now()
	snap := capacity.Classify(holders, now)
	return &PositionHolders{
		PositionID:     positionID,
		AsOf:           now,
		Holders:        snap.Holders,
		ActiveNonPlt:   snap.ActiveNonPlt,
		ActivePlt:      snap.ActivePlt,
		HistoricalRows: snap.HistoricalRows,
	}, nil
}

func normalizeAssignmentRequest(req AssignmentRequest) AssignmentRequest {
	req.StartDate = req.StartDate.UTC()
	if req.EndDate != nil {
		end := req.EndDate.UTC()
		req.EndDate = &end
	}
	return req
}

func appendNote(existing *string, note string) *string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return &note
	}
	combined := strings.TrimRight(*existing, "\n") + "\n" + note
	return &combined
}
