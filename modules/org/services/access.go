package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/authz"
)

type EntityType string

const (
	EntityPosition   EntityType = "position"
	EntityAssignment EntityType = "position_assignment"
	EntityHierarchy  EntityType = "position_hierarchy"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// UserContext is the resolved access scope of an actor.
type UserContext struct {
	ActorID             uuid.UUID   `json:"actor_id"`
	IsSuperadmin        bool        `json:"is_superadmin"`
	ScopedSchoolIDs     []uuid.UUID `json:"scoped_school_ids"`
	ScopedDepartmentIDs []uuid.UUID `json:"scoped_department_ids"`
}

func (u UserContext) inScope(schoolID, departmentID *uuid.UUID) bool {
	if departmentID != nil && slices.Contains(u.ScopedDepartmentIDs, *departmentID) {
		return true
	}
	if schoolID != nil && slices.Contains(u.ScopedSchoolIDs, *schoolID) {
		return true
	}
	return false
}

type AccessControl interface {
	GetUserContext(ctx context.Context, actorID uuid.UUID) (UserContext, error)
	CanAccessRecord(ctx context.Context, uc UserContext, entity EntityType, entityID uuid.UUID, op Operation) (bool, error)
	// CanAccessScope decides for records that do not exist yet, from the
	// school and department they would belong to.
	CanAccessScope(ctx context.Context, uc UserContext, entity EntityType, op Operation, schoolID, departmentID *uuid.UUID) (bool, error)
}

// Authorizer is the subset of the casbin-backed authz service the gate uses.
type Authorizer interface {
	Allowed(ctx context.Context, req authz.Request) (bool, error)
	IsSuperadmin(subject string) (bool, error)
}

// ScopedAccess combines role policy with record scope: a non-superadmin
// needs a policy allowing the operation on the entity type, and the record
// must belong to a school or department the actor holds a position in.
type ScopedAccess struct {
	authz Authorizer
	repo  Repository
}

func NewScopedAccess(a Authorizer, repo Repository) *ScopedAccess {
	return &ScopedAccess{authz: a, repo: repo}
}

func (s *ScopedAccess) GetUserContext(ctx context.Context, actorID uuid.UUID) (UserContext, error) {
	uc := UserContext{ActorID: actorID}
	superadmin, err := s.authz.IsSuperadmin(authz.SubjectForUser(actorID))
	if err != nil {
		return uc, err
	}
	uc.IsSuperadmin = superadmin
	if superadmin {
		return uc, nil
	}

	holdings, err := s.repo.ListActiveHoldings(ctx, actorID)
	if err != nil {
		return uc, fmt.Errorf("resolve scope for %s: %w", actorID, err)
	}
	for _, h := range holdings {
		if h.DepartmentID != nil && !slices.Contains(uc.ScopedDepartmentIDs, *h.DepartmentID) {
			uc.ScopedDepartmentIDs = append(uc.ScopedDepartmentIDs, *h.DepartmentID)
		}
		if h.SchoolID != nil && !slices.Contains(uc.ScopedSchoolIDs, *h.SchoolID) {
			uc.ScopedSchoolIDs = append(uc.ScopedSchoolIDs, *h.SchoolID)
		}
	}
	return uc, nil
}

func (s *ScopedAccess) CanAccessRecord(ctx context.Context, uc UserContext, entity EntityType, entityID uuid.UUID, op Operation) (bool, error) {
	if uc.IsSuperadmin {
		return true, nil
	}
	allowed, err := s.authz.Allowed(ctx, authz.NewRequest(authz.SubjectForUser(uc.ActorID), string(entity), string(op)))
	if err != nil || !allowed {
		return false, err
	}

	var positionID uuid.UUID
	switch entity {
	case EntityPosition, EntityHierarchy:
		positionID = entityID
	case EntityAssignment:
		a, err := s.repo.FindAssignment(ctx, entityID)
		if err != nil {
			return false, err
		}
		if a == nil {
			// Let the validator report the missing record.
			return true, nil
		}
		positionID = a.PositionID
	default:
		return false, fmt.Errorf("unknown entity type %q", entity)
	}
	if positionID == uuid.Nil {
		return true, nil
	}

	p, err := s.repo.FindPosition(ctx, positionID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return true, nil
	}
	return uc.inScope(p.SchoolID, p.DepartmentID), nil
}

func (s *ScopedAccess) CanAccessScope(ctx context.Context, uc UserContext, entity EntityType, op Operation, schoolID, departmentID *uuid.UUID) (bool, error) {
	if uc.IsSuperadmin {
		return true, nil
	}
	allowed, err := s.authz.Allowed(ctx, authz.NewRequest(authz.SubjectForUser(uc.ActorID), string(entity), string(op)))
	if err != nil || !allowed {
		return false, err
	}
	return uc.inScope(schoolID, departmentID), nil
}

// checkAccess is the gate every operation runs before any validation.
func checkAccess(ctx context.Context, ac AccessControl, actorID uuid.UUID, entity EntityType, entityID uuid.UUID, op Operation) (UserContext, error) {
	uc, err := ac.GetUserContext(ctx, actorID)
	if err != nil {
		return uc, err
	}
	ok, err := ac.CanAccessRecord(ctx, uc, entity, entityID, op)
	if err != nil {
		return uc, err
	}
	if !ok {
		return uc, newServiceError(KindAccessDenied, fmt.Sprintf("access denied: %s %s", op, entity), nil).
			with("entity_type", string(entity)).
			with("entity_id", entityID.String())
	}
	return uc, nil
}
