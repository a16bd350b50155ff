package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
)

// Repository methods run against the transaction bound to ctx, if any.
// Find* methods return (nil, nil) when the row does not exist.
type AssignmentRepository interface {
	FindAssignment(ctx context.Context, id uuid.UUID) (*Assignment, error)
	ListPositionAssignments(ctx context.Context, positionID uuid.UUID) ([]Assignment, error)
	ListActiveAssignmentsFor(ctx context.Context, personID, positionID uuid.UUID) ([]Assignment, error)
	// ListActiveHoldings returns the person's active assignments joined with
	// their positions, acting ones included.
	ListActiveHoldings(ctx context.Context, personID uuid.UUID) ([]Holding, error)
	InsertAssignment(ctx context.Context, in AssignmentInsert) (*Assignment, error)
	CloseAssignment(ctx context.Context, in AssignmentClose) (*Assignment, error)
}

type PositionRepository interface {
	FindPosition(ctx context.Context, id uuid.UUID) (*Position, error)
	FindPositionByCode(ctx context.Context, code string) (*Position, error)
	FindDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	PersonExists(ctx context.Context, personID uuid.UUID) (bool, error)
	InsertPosition(ctx context.Context, in PositionInsert) (*Position, error)
	DeactivatePosition(ctx context.Context, id uuid.UUID) error
	DeletePosition(ctx context.Context, id uuid.UUID) error
}

type HierarchyRepository interface {
	ListHierarchyNodes(ctx context.Context) ([]hierarchy.Node, error)
	FindHierarchy(ctx context.Context, positionID uuid.UUID) (*HierarchyEdges, error)
	InsertHierarchy(ctx context.Context, positionID uuid.UUID, edges HierarchyEdges, actor uuid.UUID) error
	UpdateHierarchy(ctx context.Context, positionID uuid.UUID, edges HierarchyEdges, actor uuid.UUID) error
	DeleteHierarchy(ctx context.Context, positionID uuid.UUID) error
	CountDependentPositions(ctx context.Context, positionID uuid.UUID) (int, error)
}

type Repository interface {
	AssignmentRepository
	PositionRepository
	HierarchyRepository
}

// Transactor runs fn atomically. Implementations must use serializable
// isolation (or equivalent) and report serialization failures as
// ErrTransactionConflict.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func inTx[T any](ctx context.Context, tx Transactor, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	err := tx.InTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, mapPgError(err)
	}
	return out, nil
}

// HierarchyCache stores the full node list between hierarchy writes.
type HierarchyCache interface {
	Get(ctx context.Context) ([]hierarchy.Node, bool, error)
	Set(ctx context.Context, nodes []hierarchy.Node) error
	Invalidate(ctx context.Context) error
}

func dateOnly(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
