package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/capacity"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
)

// PositionService owns positions and their hierarchy rows.
type PositionService struct {
	repo      Repository
	tx        Transactor
	access    AccessControl
	hierarchy *HierarchyService
	audit     auditor
	now       Clock
	policy    Policy
}

func NewPositionService(repo Repository, tx Transactor, access AccessControl, h *HierarchyService, opts ...Option) *PositionService {
	o := buildOptions(opts)
	return &PositionService{
		repo:      repo,
		tx:        tx,
		access:    access,
		hierarchy: h,
		audit:     o.auditor(),
		now:       o.now,
		policy:    o.policy,
	}
}

type positionWithEdges struct {
	Position *Position      `json:"position"`
	Edges    HierarchyEdges `json:"hierarchy"`
}

// CreatePosition inserts the position and its hierarchy row together.
func (s *PositionService) CreatePosition(ctx context.Context, req CreatePositionRequest, actorID uuid.UUID) (out *Position, err error) {
	defer func() {
		recordOperation("create_position", err)
		logRejected(ctx, "create_position", actorID, uuid.Nil, s.now(), err, logrus.Fields{"code": req.Code})
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	uc, err := checkAccess(ctx, s.access, actorID, EntityPosition, uuid.Nil, OpCreate)
	if err != nil {
		return nil, err
	}

	edges := HierarchyEdges{ReportsToID: req.ReportsToID, CoordinatorID: req.CoordinatorID}
	created, err := inTx(ctx, s.tx, func(txCtx context.Context) (*Position, error) {
		existing, err := s.repo.FindPositionByCode(txCtx, req.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, newServiceError(KindPositionCodeConflict, fmt.Sprintf("position code %s already exists", req.Code), nil).with("code", req.Code)
		}

		schoolID := req.SchoolID
		if req.DepartmentID != nil {
			dept, err := s.repo.FindDepartment(txCtx, *req.DepartmentID)
			if err != nil {
				return nil, err
			}
			if dept == nil {
				return nil, newServiceError(KindDepartmentNotFound, "department not found", nil).with("department_id", req.DepartmentID.String())
			}
			if schoolID != nil && dept.SchoolID != nil && *dept.SchoolID != *schoolID {
				return nil, newServiceError(KindDepartmentSchoolMismatch, fmt.Sprintf("department %s belongs to another school", dept.Code), nil).
					with("department_id", dept.ID.String())
			}
			if schoolID == nil {
				schoolID = dept.SchoolID
			}
		}
		ok, err := s.access.CanAccessScope(txCtx, uc, EntityPosition, OpCreate, schoolID, req.DepartmentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newServiceError(KindAccessDenied, "access denied: create position outside actor scope", nil).
				with("entity_type", string(EntityPosition))
		}
		if err := s.checkEdgeTargets(txCtx, uuid.Nil, edges); err != nil {
			return nil, err
		}

		pos, err := s.repo.InsertPosition(txCtx, PositionInsert{
			ID:             uuid.New(),
			Code:           req.Code,
			Name:           req.Name,
			DepartmentID:   req.DepartmentID,
			SchoolID:       schoolID,
			HierarchyLevel: req.HierarchyLevel,
			MaxHolders:     req.MaxHolders,
			IsUnique:       req.IsUnique,
			CreatedBy:      actorID,
		})
		if err != nil {
			return nil, err
		}
		if err := s.repo.InsertHierarchy(txCtx, pos.ID, edges, actorID); err != nil {
			return nil, err
		}
		return pos, nil
	})
	if err != nil {
		return nil, err
	}

	s.hierarchy.Invalidate(ctx, "position_created")
	s.audit.record(ctx, &AuditEvent{
		ActorID:    actorID,
		Action:     AuditCreate,
		EntityType: EntityPosition,
		EntityID:   created.ID,
		NewValues:  positionWithEdges{Position: created, Edges: edges},
	})
	return created, nil
}

func (s *PositionService) checkEdgeTargets(ctx context.Context, self uuid.UUID, edges HierarchyEdges) error {
	for _, target := range []*uuid.UUID{edges.ReportsToID, edges.CoordinatorID} {
		if target == nil {
			continue
		}
		if self != uuid.Nil && *target == self {
			return newServiceError(KindHierarchyCycle, "a position cannot report to itself", nil).with("position_id", self.String())
		}
		p, err := s.repo.FindPosition(ctx, *target)
		if err != nil {
			return err
		}
		if p == nil {
			return newServiceError(KindPositionNotFound, "hierarchy target position not found", nil).with("position_id", target.String())
		}
	}
	return nil
}

// UpdateHierarchy replaces both edges of a position, rejecting cycles.
func (s *PositionService) UpdateHierarchy(ctx context.Context, req UpdateHierarchyRequest, actorID uuid.UUID) (out *HierarchyEdges, err error) {
	defer func() {
		recordOperation("update_hierarchy", err)
		logRejected(ctx, "update_hierarchy", actorID, req.PositionID, s.now(), err, nil)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := checkAccess(ctx, s.access, actorID, EntityHierarchy, req.PositionID, OpUpdate); err != nil {
		return nil, err
	}

	edges := HierarchyEdges{ReportsToID: req.ReportsToID, CoordinatorID: req.CoordinatorID}
	type result struct{ before, after *HierarchyEdges }
	res, err := inTx(ctx, s.tx, func(txCtx context.Context) (result, error) {
		pos, err := s.repo.FindPosition(txCtx, req.PositionID)
		if err != nil {
			return result{}, err
		}
		if pos == nil {
			return result{}, newServiceError(KindPositionNotFound, "position not found", nil).with("position_id", req.PositionID.String())
		}
		if err := s.checkEdgeTargets(txCtx, pos.ID, edges); err != nil {
			return result{}, err
		}

		nodes, err := s.repo.ListHierarchyNodes(txCtx)
		if err != nil {
			return result{}, err
		}
		g := hierarchy.New(nodes, hierarchy.WithMaxChainDepth(s.policy.MaxChainDepth))
		for _, target := range []*uuid.UUID{edges.ReportsToID, edges.CoordinatorID} {
			if target != nil && g.WouldCreateCycle(pos.ID, *target) {
				return result{}, newServiceError(KindHierarchyCycle, fmt.Sprintf("linking %s to %s would create a cycle", pos.Code, target), nil).
					with("position_id", pos.ID.String()).
					with("target_id", target.String())
			}
		}

		before, err := s.repo.FindHierarchy(txCtx, pos.ID)
		if err != nil {
			return result{}, err
		}
		if before == nil {
			err = s.repo.InsertHierarchy(txCtx, pos.ID, edges, actorID)
		} else {
			err = s.repo.UpdateHierarchy(txCtx, pos.ID, edges, actorID)
		}
		if err != nil {
			return result{}, err
		}
		return result{before: before, after: &edges}, nil
	})
	if err != nil {
		return nil, err
	}

	s.hierarchy.Invalidate(ctx, "hierarchy_updated")
	s.audit.record(ctx, &AuditEvent{
		ActorID:    actorID,
		Action:     AuditOrganizationalChange,
		EntityType: EntityHierarchy,
		EntityID:   req.PositionID,
		ChangeType: "HIERARCHY_UPDATE",
		OldValues:  res.before,
		NewValues:  res.after,
	})
	return res.after, nil
}

// DeletePosition removes a position and its hierarchy row. A position with
// assignment history is deactivated instead, since assignments are never
// deleted. It reports whether the position was retired rather than removed.
func (s *PositionService) DeletePosition(ctx context.Context, positionID uuid.UUID, actorID uuid.UUID) (retired bool, err error) {
	defer func() {
		recordOperation("delete_position", err)
		logRejected(ctx, "delete_position", actorID, positionID, s.now(), err, nil)
	}()

	if _, err := checkAccess(ctx, s.access, actorID, EntityPosition, positionID, OpDelete); err != nil {
		return false, err
	}

	type result struct {
		before  *Position
		retired bool
	}
	res, err := inTx(ctx, s.tx, func(txCtx context.Context) (result, error) {
		pos, err := s.repo.FindPosition(txCtx, positionID)
		if err != nil {
			return result{}, err
		}
		if pos == nil {
			return result{}, newServiceError(KindPositionNotFound, "position not found", nil).with("position_id", positionID.String())
		}

		n, err := s.repo.CountDependentPositions(txCtx, positionID)
		if err != nil {
			return result{}, err
		}
		if n > 0 {
			return result{}, newServiceError(KindHasDependentPositions, fmt.Sprintf("position %s has %d dependent positions", pos.Code, n), nil).
				with("dependents", fmt.Sprint(n))
		}

		rows, err := s.repo.ListPositionAssignments(txCtx, positionID)
		if err != nil {
			return result{}, err
		}
		holders := make([]capacity.Holder, 0, len(rows))
		for _, a := range rows {
			holders = append(holders, a.holder())
		}
		snap := capacity.Classify(holders, s.now())
		if active := snap.ActiveNonPlt + snap.ActivePlt; active > 0 {
			return result{}, newServiceError(KindHasActiveHolders, fmt.Sprintf("position %s has %d active holders", pos.Code, active), nil).
				with("active_holders", fmt.Sprint(active))
		}

		if len(rows) > 0 {
			// A retired position keeps its hierarchy row, detached from the graph.
			if err := s.repo.UpdateHierarchy(txCtx, positionID, HierarchyEdges{}, actorID); err != nil {
				return result{}, err
			}
			return result{before: pos, retired: true}, s.repo.DeactivatePosition(txCtx, positionID)
		}
		if err := s.repo.DeleteHierarchy(txCtx, positionID); err != nil {
			return result{}, err
		}
		return result{before: pos}, s.repo.DeletePosition(txCtx, positionID)
	})
	if err != nil {
		return false, err
	}

	s.hierarchy.Invalidate(ctx, "position_deleted")
	action := AuditDelete
	if res.retired {
		action = AuditUpdate
	}
	s.audit.record(ctx, &AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: EntityPosition,
		EntityID:   positionID,
		OldValues:  res.before,
		Meta:       map[string]any{"retired": res.retired},
	})
	return res.retired, nil
}
