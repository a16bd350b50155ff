package hierarchy

import (
	"github.com/google/uuid"
)

// Outranks reports whether a holder of appointer may appoint into target:
// strictly more senior (lower level) and in the same department. Two
// positions without a department count as the same department.
func Outranks(appointer, target Node) bool {
	if appointer.HierarchyLevel >= target.HierarchyLevel {
		return false
	}
	return sameDepartment(appointer.DepartmentID, target.DepartmentID)
}

func sameDepartment(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// SameDepartment exposes the department comparison used by Outranks.
func SameDepartment(a, b *uuid.UUID) bool {
	return sameDepartment(a, b)
}

// AnyOutranks checks every holding, not just the first one.
func AnyOutranks(holdings []Node, target Node) (Node, bool) {
	for _, h := range holdings {
		if Outranks(h, target) {
			return h, true
		}
	}
	return Node{}, false
}

// HasAuthority resolves appointer and target ids against the graph.
// Unknown appointer positions are skipped.
func (g *Graph) HasAuthority(appointerPositionIDs []uuid.UUID, targetID uuid.UUID) (bool, error) {
	target, ok := g.Node(targetID)
	if !ok {
		return false, ErrPositionNotInGraph
	}
	holdings := make([]Node, 0, len(appointerPositionIDs))
	for _, id := range appointerPositionIDs {
		if n, ok := g.Node(id); ok {
			holdings = append(holdings, n)
		}
	}
	_, ok = AnyOutranks(holdings, target)
	return ok, nil
}
