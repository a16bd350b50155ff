package hierarchy

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func idp(id uuid.UUID) *uuid.UUID { return &id }

func node(code string, level int, dept *uuid.UUID) Node {
	return Node{
		PositionID:     uuid.New(),
		Code:           code,
		Name:           code,
		HierarchyLevel: level,
		DepartmentID:   dept,
		IsActive:       true,
	}
}

func TestReportingChain_WalksToRoot(t *testing.T) {
	root := node("HEAD", 1, nil)
	mid := node("VICE", 2, nil)
	leaf := node("STAFF", 3, nil)
	mid.ReportsToID = idp(root.PositionID)
	leaf.ReportsToID = idp(mid.PositionID)

	g := New([]Node{root, mid, leaf})
	chain, err := g.ReportingChain(leaf.PositionID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, leaf.PositionID, chain[0].PositionID)
	require.Equal(t, root.PositionID, chain[2].PositionID)
	require.Equal(t, 2, chain[2].Depth)
}

func TestReportingChain_CapsAtMaxDepth(t *testing.T) {
	nodes := make([]Node, 26)
	for i := range nodes {
		nodes[i] = node(fmt.Sprintf("P%02d", i), i+1, nil)
	}
	for i := 1; i < len(nodes); i++ {
		nodes[i].ReportsToID = idp(nodes[i-1].PositionID)
	}

	g := New(nodes)
	chain, err := g.ReportingChain(nodes[25].PositionID)
	require.NoError(t, err)
	require.Len(t, chain, DefaultMaxChainDepth)
}

func TestReportingChain_StopsOnCycle(t *testing.T) {
	a, b, c := node("A", 1, nil), node("B", 2, nil), node("C", 3, nil)
	a.ReportsToID = idp(b.PositionID)
	b.ReportsToID = idp(c.PositionID)
	c.ReportsToID = idp(a.PositionID)

	chain, err := New([]Node{a, b, c}).ReportingChain(a.PositionID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
}

func TestReportingChain_UnknownPosition(t *testing.T) {
	_, err := New(nil).ReportingChain(uuid.New())
	require.ErrorIs(t, err, ErrPositionNotInGraph)
}

func TestSubordinates_FollowsBothEdgeKinds(t *testing.T) {
	head := node("HEAD", 1, nil)
	vice := node("VICE", 2, nil)
	coord := node("COORD", 3, nil)
	staff := node("STAFF", 4, nil)
	other := node("OTHER", 2, nil)
	vice.ReportsToID = idp(head.PositionID)
	coord.CoordinatorID = idp(vice.PositionID)
	staff.ReportsToID = idp(coord.PositionID)

	subs, err := New([]Node{head, vice, coord, staff, other}).Subordinates(head.PositionID)
	require.NoError(t, err)
	require.Len(t, subs, 3)

	byID := map[uuid.UUID]Subordinate{}
	for _, s := range subs {
		byID[s.PositionID] = s
	}
	require.Equal(t, Coordinator, byID[coord.PositionID].Relation)
	require.Equal(t, 3, byID[staff.PositionID].Depth)
	require.NotContains(t, byID, other.PositionID)
}

func TestSubordinates_TerminatesOnCycle(t *testing.T) {
	a, b := node("A", 1, nil), node("B", 2, nil)
	a.ReportsToID = idp(b.PositionID)
	b.ReportsToID = idp(a.PositionID)

	subs, err := New([]Node{a, b}).Subordinates(a.PositionID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestWouldCreateCycle(t *testing.T) {
	a, b, c := node("A", 1, nil), node("B", 2, nil), node("C", 3, nil)
	b.ReportsToID = idp(a.PositionID)
	c.CoordinatorID = idp(b.PositionID)
	g := New([]Node{a, b, c})

	require.True(t, g.WouldCreateCycle(a.PositionID, c.PositionID))
	require.True(t, g.WouldCreateCycle(a.PositionID, a.PositionID))
	require.False(t, g.WouldCreateCycle(c.PositionID, a.PositionID))
}

func TestValidate_DetectsThreeNodeCycle(t *testing.T) {
	a, b, c := node("A", 1, nil), node("B", 2, nil), node("C", 3, nil)
	a.ReportsToID = idp(b.PositionID)
	b.ReportsToID = idp(c.PositionID)
	c.ReportsToID = idp(a.PositionID)

	rep := New([]Node{a, b, c}).Validate()
	require.False(t, rep.Valid)
	require.Len(t, rep.CircularReferences, 3)

	involved := map[uuid.UUID]uuid.UUID{}
	for _, cr := range rep.CircularReferences {
		involved[cr.PositionID] = cr.ConflictWith
	}
	require.Equal(t, c.PositionID, involved[a.PositionID])
	require.Equal(t, a.PositionID, involved[b.PositionID])
	require.Equal(t, b.PositionID, involved[c.PositionID])
	require.Empty(t, rep.OrphanedPositions)
}

func TestValidate_AcyclicChainIsValid(t *testing.T) {
	a, b, c := node("A", 1, nil), node("B", 2, nil), node("C", 3, nil)
	b.ReportsToID = idp(a.PositionID)
	c.ReportsToID = idp(b.PositionID)

	rep := New([]Node{a, b, c}).Validate()
	require.True(t, rep.Valid)
	require.Empty(t, rep.CircularReferences)
	require.Equal(t, 3, rep.Checked)
}

func TestValidate_ReportsOrphans(t *testing.T) {
	root := node("ROOT", 1, nil)
	retired := node("RETIRED", 2, nil)
	retired.IsActive = false
	retired.ReportsToID = idp(root.PositionID)

	underRetired := node("UNDER_RETIRED", 3, nil)
	underRetired.ReportsToID = idp(retired.PositionID)

	dangling := node("DANGLING", 3, nil)
	dangling.ReportsToID = idp(uuid.New())

	x, y := node("X", 1, nil), node("Y", 1, nil)
	x.ReportsToID = idp(y.PositionID)
	y.ReportsToID = idp(x.PositionID)
	intoCycle := node("INTO_CYCLE", 2, nil)
	intoCycle.ReportsToID = idp(x.PositionID)

	rep := New([]Node{root, retired, underRetired, dangling, x, y, intoCycle}).Validate()
	require.False(t, rep.Valid)
	require.Len(t, rep.CircularReferences, 2)

	reasons := map[string]string{}
	for _, o := range rep.OrphanedPositions {
		reasons[o.Code] = o.Reason
	}
	require.Len(t, reasons, 3)
	require.Contains(t, reasons["UNDER_RETIRED"], "inactive")
	require.Contains(t, reasons["DANGLING"], "does not exist")
	require.Contains(t, reasons["INTO_CYCLE"], "cycle")
}

func TestValidate_ReportsChainsDeeperThanCap(t *testing.T) {
	nodes := make([]Node, 30)
	for i := range nodes {
		nodes[i] = node(fmt.Sprintf("P%02d", i), i+1, nil)
	}
	for i := 1; i < len(nodes); i++ {
		nodes[i].ReportsToID = idp(nodes[i-1].PositionID)
	}

	rep := New(nodes, WithMaxChainDepth(20)).Validate()
	require.False(t, rep.Valid)
	require.NotEmpty(t, rep.OrphanedPositions)
	require.Contains(t, rep.OrphanedPositions[0].Reason, "exceeds 20 levels")
}

func TestHasAuthority(t *testing.T) {
	d, other := uuid.New(), uuid.New()
	appointer := node("HEAD_D", 2, &d)
	sameDeptJunior := node("STAFF_D", 3, &d)
	sameDeptPeer := node("PEER_D", 2, &d)
	otherDept := node("STAFF_X", 3, &other)
	g := New([]Node{appointer, sameDeptJunior, sameDeptPeer, otherDept})

	ok, err := g.HasAuthority([]uuid.UUID{appointer.PositionID}, sameDeptJunior.PositionID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.HasAuthority([]uuid.UUID{appointer.PositionID}, sameDeptPeer.PositionID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = g.HasAuthority([]uuid.UUID{appointer.PositionID}, otherDept.PositionID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAnyOutranks_ChecksAllHoldings(t *testing.T) {
	d1, d2 := uuid.New(), uuid.New()
	target := node("T", 4, &d2)
	holdings := []Node{node("H1", 1, &d1), node("H2", 3, &d2)}

	h, ok := AnyOutranks(holdings, target)
	require.True(t, ok)
	require.Equal(t, "H2", h.Code)
}

func TestValidate_LongCycleIsCircularNotTooDeep(t *testing.T) {
	nodes := make([]Node, 25)
	for i := range nodes {
		nodes[i] = node(fmt.Sprintf("A%02d", i), i+1, nil)
	}
	for i := range nodes {
		nodes[i].ReportsToID = idp(nodes[(i+1)%len(nodes)].PositionID)
	}

	rep := New(nodes, WithMaxChainDepth(20)).Validate()
	require.False(t, rep.Valid)
	require.Len(t, rep.CircularReferences, 25)
	require.Empty(t, rep.OrphanedPositions)

	feeder := node("FEEDER", 30, nil)
	feeder.ReportsToID = idp(nodes[0].PositionID)
	rep = New(append(nodes, feeder), WithMaxChainDepth(20)).Validate()
	require.Len(t, rep.CircularReferences, 25)
	require.Len(t, rep.OrphanedPositions, 1)
	require.Contains(t, rep.OrphanedPositions[0].Reason, "cycle")
}
