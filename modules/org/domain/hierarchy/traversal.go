package hierarchy

import (
	"errors"

	"github.com/google/uuid"
)

var ErrPositionNotInGraph = errors.New("position not found in hierarchy")

type ChainEntry struct {
	Depth          int        `json:"depth"`
	HierarchyLevel int        `json:"hierarchy_level"`
	PositionID     uuid.UUID  `json:"position_id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
}

// ReportingChain follows reports_to upward starting at id (depth 0). The walk
// stops at a root, at a dangling edge, when a node repeats, or once the
// chain holds MaxChainDepth entries.
func (g *Graph) ReportingChain(id uuid.UUID) ([]ChainEntry, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, ErrPositionNotInGraph
	}

	chain := make([]ChainEntry, 0, 8)
	visited := make(map[uuid.UUID]struct{}, 8)
	for len(chain) < g.maxChainDepth {
		n := g.nodes[i]
		if _, seen := visited[n.PositionID]; seen {
			break
		}
		visited[n.PositionID] = struct{}{}
		chain = append(chain, ChainEntry{
			Depth:          len(chain),
			HierarchyLevel: n.HierarchyLevel,
			PositionID:     n.PositionID,
			Code:           n.Code,
			Name:           n.Name,
			DepartmentID:   n.DepartmentID,
		})
		if n.ReportsToID == nil {
			break
		}
		next, ok := g.index[*n.ReportsToID]
		if !ok {
			break
		}
		i = next
	}
	return chain, nil
}

type Subordinate struct {
	PositionID     uuid.UUID  `json:"position_id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	HierarchyLevel int        `json:"hierarchy_level"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	Relation       EdgeKind   `json:"relation"`
	Depth          int        `json:"depth"`
	ViaPositionID  uuid.UUID  `json:"via_position_id"`
}

// Subordinates is the transitive closure of positions whose reports_to or
// coordinator edge resolves to id, breadth-first, each position once.
func (g *Graph) Subordinates(id uuid.UUID) ([]Subordinate, error) {
	if _, ok := g.index[id]; !ok {
		return nil, ErrPositionNotInGraph
	}

	inv := g.inverse(ReportsTo, Coordinator)
	visited := map[uuid.UUID]struct{}{id: {}}
	type item struct {
		id    uuid.UUID
		depth int
	}
	queue := []item{{id: id}}
	out := make([]Subordinate, 0)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ci := range inv[cur.id] {
			child := g.nodes[ci]
			if _, seen := visited[child.PositionID]; seen {
				continue
			}
			visited[child.PositionID] = struct{}{}
			rel := ReportsTo
			if child.ReportsToID == nil || *child.ReportsToID != cur.id {
				rel = Coordinator
			}
			out = append(out, Subordinate{
				PositionID:     child.PositionID,
				Code:           child.Code,
				Name:           child.Name,
				HierarchyLevel: child.HierarchyLevel,
				DepartmentID:   child.DepartmentID,
				Relation:       rel,
				Depth:          cur.depth + 1,
				ViaPositionID:  cur.id,
			})
			queue = append(queue, item{id: child.PositionID, depth: cur.depth + 1})
		}
	}
	return out, nil
}

// WouldCreateCycle reports whether pointing from's edge at to would let a
// walk over either edge kind return to from.
func (g *Graph) WouldCreateCycle(from, to uuid.UUID) bool {
	if from == to {
		return true
	}
	visited := make(map[uuid.UUID]struct{})
	stack := []uuid.UUID{to}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == from {
			return true
		}
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		i, ok := g.index[cur]
		if !ok {
			continue
		}
		n := g.nodes[i]
		if n.ReportsToID != nil {
			stack = append(stack, *n.ReportsToID)
		}
		if n.CoordinatorID != nil {
			stack = append(stack, *n.CoordinatorID)
		}
	}
	return false
}
