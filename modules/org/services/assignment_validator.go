package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/capacity"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/validity"
)

// AssignmentValidator runs the read side of every assignment write. All
// methods expect ctx to carry the enclosing transaction so the reads and the
// following write see one snapshot.
type AssignmentValidator struct {
	repo   Repository
	access AccessControl
	policy Policy
	now    Clock
}

func NewAssignmentValidator(repo Repository, access AccessControl, policy Policy, now Clock) *AssignmentValidator {
	if now == nil {
		now = systemClock
	}
	return &AssignmentValidator{repo: repo, access: access, policy: policy.normalized(), now: now}
}

// ValidateAssignment checks, in order and stopping at the first failure:
// interval, target position, capacity, overlap, same-level conflict and
// acting duration. It returns the target position.
func (v *AssignmentValidator) ValidateAssignment(ctx context.Context, req AssignmentRequest) (*Position, error) {
	now := v.now()
	interval := validity.New(req.StartDate, req.EndDate)

	if err := v.policy.Validity.Validate(interval, now); err != nil {
		return nil, newServiceError(KindInvalidDateRange, err.Error(), err)
	}

	pos, err := v.repo.FindPosition(ctx, req.PositionID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, newServiceError(KindPositionNotFound, "position not found", nil).with("position_id", req.PositionID.String())
	}
	if !pos.IsActive {
		return nil, newServiceError(KindPositionInactive, fmt.Sprintf("position %s is inactive", pos.Code), nil).with("position_code", pos.Code)
	}

	if err := v.checkCapacity(ctx, pos, req.IsPlt, now); err != nil {
		return nil, err
	}
	if err := v.checkOverlap(ctx, req.PersonID, pos, interval); err != nil {
		return nil, err
	}
	if !req.IsPlt {
		if err := v.checkSameLevel(ctx, req.PersonID, pos, now); err != nil {
			return nil, err
		}
	} else if err := v.checkActingDuration(req); err != nil {
		return nil, err
	}
	return pos, nil
}

func (v *AssignmentValidator) checkCapacity(ctx context.Context, pos *Position, isPlt bool, now time.Time) error {
	rows, err := v.repo.ListPositionAssignments(ctx, pos.ID)
	if err != nil {
		return err
	}
	holders := make([]capacity.Holder, 0, len(rows))
	for _, a := range rows {
		holders = append(holders, a.holder())
	}
	snap := capacity.Classify(holders, now)

	err = capacity.Check(snap, pos.capacityRules(v.policy.MaxActingHolders), isPlt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, capacity.ErrUniquePositionOccupied):
		return newServiceError(KindUniquePositionOccupied, fmt.Sprintf("position %s is unique and already has an active holder", pos.Code), err).
			with("position_code", pos.Code)
	case errors.Is(err, capacity.ErrCapacityExceeded):
		return newServiceError(KindCapacityExceeded, fmt.Sprintf("position %s already has %d of %d holders", pos.Code, snap.ActiveNonPlt, pos.MaxHolders), err).
			with("position_code", pos.Code).
			with("max_holders", fmt.Sprint(pos.MaxHolders))
	case errors.Is(err, capacity.ErrActingLimitExceeded):
		return newServiceError(KindActingLimitExceeded, fmt.Sprintf("position %s already has %d acting holders", pos.Code, snap.ActivePlt), err).
			with("position_code", pos.Code)
	default:
		return err
	}
}

func (v *AssignmentValidator) checkOverlap(ctx context.Context, personID uuid.UUID, pos *Position, candidate validity.Interval) error {
	existing, err := v.repo.ListActiveAssignmentsFor(ctx, personID, pos.ID)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if validity.Overlaps(a.interval(), candidate) {
			return newServiceError(KindOverlappingAssignment, fmt.Sprintf("person already holds %s in an overlapping period", pos.Code), nil).
				with("conflicting_assignment_id", a.ID.String())
		}
	}
	return nil
}

func (v *AssignmentValidator) checkSameLevel(ctx context.Context, personID uuid.UUID, pos *Position, now time.Time) error {
	holdings, err := v.substantiveHoldings(ctx, personID, now)
	if err != nil {
		return err
	}
	for _, h := range holdings {
		if h.PositionID == pos.ID {
			continue
		}
		if h.HierarchyLevel == pos.HierarchyLevel && hierarchy.SameDepartment(h.DepartmentID, pos.DepartmentID) {
			return newServiceError(KindSameLevelConflict, fmt.Sprintf("person already holds %s at the same level in the same department", h.Code), nil).
				with("conflicting_position_id", h.PositionID.String()).
				with("conflicting_position_code", h.Code)
		}
	}
	return nil
}

func (v *AssignmentValidator) checkActingDuration(req AssignmentRequest) error {
	if req.EndDate == nil {
		return newServiceError(KindActingRequiresEndDate, "acting assignments require an end date", nil)
	}
	limit := v.policy.ActingMaxDuration.AddTo(req.StartDate)
	if req.EndDate.After(limit) {
		return newServiceError(KindActingDurationExceeded, fmt.Sprintf("acting assignments may not exceed %s", v.policy.ActingMaxDuration), nil).
			with("max_end_date", dateOnly(limit))
	}
	return nil
}

// substantiveHoldings are the person's active, non-acting, not yet ended
// assignments.
func (v *AssignmentValidator) substantiveHoldings(ctx context.Context, personID uuid.UUID, now time.Time) ([]Holding, error) {
	all, err := v.repo.ListActiveHoldings(ctx, personID)
	if err != nil {
		return nil, err
	}
	out := make([]Holding, 0, len(all))
	for _, h := range all {
		if h.IsPlt {
			continue
		}
		if h.EndDate != nil && !h.EndDate.After(now) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// ValidateTermination returns the assignment to close.
func (v *AssignmentValidator) ValidateTermination(ctx context.Context, req TerminationRequest) (*Assignment, error) {
	a, err := v.activeAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !req.EndDate.After(a.StartDate) {
		return nil, newServiceError(KindInvalidDateRange, "end date must be after the assignment start date", nil).
			with("start_date", dateOnly(a.StartDate))
	}

	// Dependents are counted for the position, not the holder.
	n, err := v.repo.CountDependentPositions(ctx, a.PositionID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, newServiceError(KindHasDependentPositions, fmt.Sprintf("position has %d dependent positions", n), nil).
			with("dependents", fmt.Sprint(n))
	}
	return a, nil
}

func (v *AssignmentValidator) activeAssignment(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	a, err := v.repo.FindAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, newServiceError(KindAssignmentNotFound, "assignment not found", nil).with("assignment_id", id.String())
	}
	if !a.IsActive || (a.EndDate != nil && !a.EndDate.After(v.now())) {
		return nil, newServiceError(KindAssignmentNotActive, "assignment is not active", nil).with("assignment_id", id.String())
	}
	return a, nil
}

// ValidateAppointer checks that appointerID may appoint into the target.
// Superadmins bypass every check.
func (v *AssignmentValidator) ValidateAppointer(ctx context.Context, appointerID, targetPositionID uuid.UUID) error {
	uc, err := v.access.GetUserContext(ctx, appointerID)
	if err != nil {
		return err
	}
	if uc.IsSuperadmin {
		return nil
	}

	exists, err := v.repo.PersonExists(ctx, appointerID)
	if err != nil {
		return err
	}
	if !exists {
		return newServiceError(KindAppointerNotFound, "appointer not found", nil).with("appointer_id", appointerID.String())
	}

	target, err := v.repo.FindPosition(ctx, targetPositionID)
	if err != nil {
		return err
	}
	if target == nil {
		return newServiceError(KindTargetPositionNotFound, "target position not found", nil).with("position_id", targetPositionID.String())
	}

	holdings, err := v.substantiveHoldings(ctx, appointerID, v.now())
	if err != nil {
		return err
	}
	nodes := make([]hierarchy.Node, 0, len(holdings))
	for _, h := range holdings {
		nodes = append(nodes, h.node())
	}
	targetNode := hierarchy.Node{
		PositionID:     target.ID,
		Code:           target.Code,
		HierarchyLevel: target.HierarchyLevel,
		DepartmentID:   target.DepartmentID,
	}
	if _, ok := hierarchy.AnyOutranks(nodes, targetNode); !ok {
		return newServiceError(KindInsufficientAuthority, fmt.Sprintf("appointer has no position senior to %s in its department", target.Code), nil).
			with("target_position_code", target.Code)
	}
	return nil
}
