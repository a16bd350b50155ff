// Package hierarchy holds the reporting-line graph over positions.
//
// Nodes live in a slice and edges point at other nodes by id through an
// index, so every traversal works on plain identifiers and a snapshot can be
// serialized or cached as-is.
package hierarchy

import (
	"github.com/google/uuid"
)

// DefaultMaxChainDepth caps reporting-chain walks.
const DefaultMaxChainDepth = 20

type EdgeKind string

const (
	ReportsTo   EdgeKind = "reports_to"
	Coordinator EdgeKind = "coordinator"
)

// Node is one position with its outgoing edges.
type Node struct {
	PositionID     uuid.UUID  `json:"position_id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	HierarchyLevel int        `json:"hierarchy_level"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	SchoolID       *uuid.UUID `json:"school_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	ReportsToID    *uuid.UUID `json:"reports_to_id,omitempty"`
	CoordinatorID  *uuid.UUID `json:"coordinator_id,omitempty"`
}

func (n Node) edge(kind EdgeKind) *uuid.UUID {
	if kind == Coordinator {
		return n.CoordinatorID
	}
	return n.ReportsToID
}

type Graph struct {
	nodes         []Node
	index         map[uuid.UUID]int
	maxChainDepth int
}

type Option func(*Graph)

func WithMaxChainDepth(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxChainDepth = n
		}
	}
}

// New builds a graph from a snapshot. Later duplicates of a position id
// replace earlier ones.
func New(nodes []Node, opts ...Option) *Graph {
	g := &Graph{
		nodes:         make([]Node, 0, len(nodes)),
		index:         make(map[uuid.UUID]int, len(nodes)),
		maxChainDepth: DefaultMaxChainDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	for _, n := range nodes {
		if i, ok := g.index[n.PositionID]; ok {
			g.nodes[i] = n
			continue
		}
		g.index[n.PositionID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	return g
}

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) MaxChainDepth() int { return g.maxChainDepth }

func (g *Graph) Node(id uuid.UUID) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns a copy of the snapshot in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// inverse maps a target id to the positions pointing at it through kind.
func (g *Graph) inverse(kinds ...EdgeKind) map[uuid.UUID][]int {
	inv := make(map[uuid.UUID][]int, len(g.nodes))
	for i, n := range g.nodes {
		for _, k := range kinds {
			if target := n.edge(k); target != nil {
				inv[*target] = append(inv[*target], i)
			}
		}
	}
	return inv
}

// DirectDependents lists positions whose reports_to or coordinator edge
// targets id.
func (g *Graph) DirectDependents(id uuid.UUID) []Node {
	out := make([]Node, 0)
	for _, n := range g.nodes {
		if (n.ReportsToID != nil && *n.ReportsToID == id) || (n.CoordinatorID != nil && *n.CoordinatorID == id) {
			out = append(out, n)
		}
	}
	return out
}
