package hierarchy

import (
	"fmt"

	"github.com/google/uuid"
)

type CircularReference struct {
	PositionID   uuid.UUID `json:"position_id"`
	Code         string    `json:"code"`
	ConflictWith uuid.UUID `json:"conflict_with"`
}

type OrphanedPosition struct {
	PositionID uuid.UUID `json:"position_id"`
	Code       string    `json:"code"`
	Reason     string    `json:"reason"`
}

type Report struct {
	Valid              bool                `json:"valid"`
	Checked            int                 `json:"checked"`
	CircularReferences []CircularReference `json:"circular_references"`
	OrphanedPositions  []OrphanedPosition  `json:"orphaned_positions"`
}

type walkEnd int

const (
	endRoot walkEnd = iota
	endDangling
	endOwnCycle
	endForeignCycle
	endTooDeep
)

type walkResult struct {
	end walkEnd
	// last is the node whose reports_to closed the cycle or dangled.
	last     uuid.UUID
	dangling uuid.UUID
}

// walkToRoot follows reports_to from start until it reaches a root, leaves
// the graph or revisits a node. The visited set bounds the walk; depth is
// judged only once a root is reached.
func (g *Graph) walkToRoot(start int) walkResult {
	startID := g.nodes[start].PositionID
	visited := map[uuid.UUID]struct{}{startID: {}}
	cur := start
	for hops := 0; ; hops++ {
		n := g.nodes[cur]
		if n.ReportsToID == nil {
			if hops > g.maxChainDepth {
				return walkResult{end: endTooDeep, last: n.PositionID}
			}
			return walkResult{end: endRoot, last: n.PositionID}
		}
		next := *n.ReportsToID
		if next == startID {
			return walkResult{end: endOwnCycle, last: n.PositionID}
		}
		if _, seen := visited[next]; seen {
			return walkResult{end: endForeignCycle, last: n.PositionID}
		}
		ni, ok := g.index[next]
		if !ok {
			return walkResult{end: endDangling, last: n.PositionID, dangling: next}
		}
		visited[next] = struct{}{}
		cur = ni
	}
}

// Validate scans the whole graph for reporting cycles and positions that
// cannot reach a root. A root is an active position without reports_to.
func (g *Graph) Validate() Report {
	rep := Report{
		Checked:            len(g.nodes),
		CircularReferences: make([]CircularReference, 0),
		OrphanedPositions:  make([]OrphanedPosition, 0),
	}

	inCycle := make(map[uuid.UUID]struct{})
	results := make([]walkResult, len(g.nodes))
	for i, n := range g.nodes {
		res := g.walkToRoot(i)
		results[i] = res
		if res.end == endOwnCycle {
			inCycle[n.PositionID] = struct{}{}
			rep.CircularReferences = append(rep.CircularReferences, CircularReference{
				PositionID:   n.PositionID,
				Code:         n.Code,
				ConflictWith: res.last,
			})
		}
	}

	for i, n := range g.nodes {
		if !n.IsActive {
			continue
		}
		if _, ok := inCycle[n.PositionID]; ok {
			continue
		}
		if reason := g.orphanReason(n, results[i]); reason != "" {
			rep.OrphanedPositions = append(rep.OrphanedPositions, OrphanedPosition{
				PositionID: n.PositionID,
				Code:       n.Code,
				Reason:     reason,
			})
		}
	}

	rep.Valid = len(rep.CircularReferences) == 0 && len(rep.OrphanedPositions) == 0
	return rep
}

func (g *Graph) orphanReason(n Node, res walkResult) string {
	if n.ReportsToID != nil {
		parent, ok := g.Node(*n.ReportsToID)
		if !ok {
			return fmt.Sprintf("reports_to position %s does not exist", n.ReportsToID)
		}
		if !parent.IsActive {
			return fmt.Sprintf("reports_to position %s (%s) is inactive", parent.Code, parent.PositionID)
		}
	}

	switch res.end {
	case endDangling:
		last, _ := g.Node(res.last)
		return fmt.Sprintf("reporting chain breaks at %s: reports_to position %s does not exist", last.Code, res.dangling)
	case endForeignCycle:
		return "reporting chain enters a cycle and never reaches a root"
	case endTooDeep:
		return fmt.Sprintf("reporting chain exceeds %d levels without reaching a root", g.maxChainDepth)
	case endRoot:
		root, _ := g.Node(res.last)
		if !root.IsActive {
			return fmt.Sprintf("reporting chain ends at inactive root %s", root.Code)
		}
	}
	return ""
}
