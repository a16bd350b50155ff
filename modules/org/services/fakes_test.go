package services

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }

type memStore struct {
	mu          sync.Mutex
	positions   map[uuid.UUID]Position
	departments map[uuid.UUID]Department
	persons     map[uuid.UUID]bool
	assignments map[uuid.UUID]Assignment
	order       []uuid.UUID
	edges       map[uuid.UUID]HierarchyEdges
	seq         int

	failInsertAssignment error
}

func newMemStore() *memStore {
	return &memStore{
		positions:   map[uuid.UUID]Position{},
		departments: map[uuid.UUID]Department{},
		persons:     map[uuid.UUID]bool{},
		assignments: map[uuid.UUID]Assignment{},
		edges:       map[uuid.UUID]HierarchyEdges{},
	}
}

type memSnapshot struct {
	positions   map[uuid.UUID]Position
	assignments map[uuid.UUID]Assignment
	order       []uuid.UUID
	edges       map[uuid.UUID]HierarchyEdges
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		positions:   maps.Clone(m.positions),
		assignments: maps.Clone(m.assignments),
		order:       slices.Clone(m.order),
		edges:       maps.Clone(m.edges),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions, m.assignments, m.order, m.edges = s.positions, s.assignments, s.order, s.edges
}

// memTx serializes transactions and rolls the store back on error.
type memTx struct {
	mu        sync.Mutex
	store     *memStore
	conflicts int
	commits   int
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	if t.conflicts > 0 {
		t.conflicts--
		t.store.restore(snap)
		return ErrTransactionConflict
	}
	t.commits++
	return nil
}

func (m *memStore) addDepartment(code string, school *uuid.UUID) Department {
	d := Department{ID: uuid.New(), Code: code, Name: code, SchoolID: school, IsActive: true}
	m.departments[d.ID] = d
	return d
}

func (m *memStore) addPosition(code string, level, maxHolders int, unique bool, dept *uuid.UUID) Position {
	p := Position{
		ID:             uuid.New(),
		Code:           code,
		Name:           code,
		DepartmentID:   dept,
		HierarchyLevel: level,
		MaxHolders:     maxHolders,
		IsUnique:       unique,
		IsActive:       true,
	}
	if dept != nil {
		p.SchoolID = m.departments[*dept].SchoolID
	}
	m.positions[p.ID] = p
	m.edges[p.ID] = HierarchyEdges{}
	return p
}

func (m *memStore) addPerson() uuid.UUID {
	id := uuid.New()
	m.persons[id] = true
	return id
}

func (m *memStore) setReportsTo(child, parent uuid.UUID) {
	e := m.edges[child]
	e.ReportsToID = &parent
	m.edges[child] = e
}

func (m *memStore) putAssignment(a Assignment) Assignment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	m.assignments[a.ID] = a
	m.order = append(m.order, a.ID)
	return a
}

func (m *memStore) FindAssignment(_ context.Context, id uuid.UUID) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) ListPositionAssignments(_ context.Context, positionID uuid.UUID) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, id := range m.order {
		if a := m.assignments[id]; a.PositionID == positionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveAssignmentsFor(_ context.Context, personID, positionID uuid.UUID) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, id := range m.order {
		if a := m.assignments[id]; a.IsActive && a.PersonID == personID && a.PositionID == positionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveHoldings(_ context.Context, personID uuid.UUID) ([]Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Holding
	for _, id := range m.order {
		a := m.assignments[id]
		if !a.IsActive || a.PersonID != personID {
			continue
		}
		p := m.positions[a.PositionID]
		out = append(out, Holding{
			AssignmentID:   a.ID,
			PositionID:     p.ID,
			Code:           p.Code,
			Name:           p.Name,
			HierarchyLevel: p.HierarchyLevel,
			DepartmentID:   p.DepartmentID,
			SchoolID:       p.SchoolID,
			IsPlt:          a.IsPlt,
			StartDate:      a.StartDate,
			EndDate:        a.EndDate,
		})
	}
	return out, nil
}

func (m *memStore) InsertAssignment(_ context.Context, in AssignmentInsert) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertAssignment != nil {
		return nil, m.failInsertAssignment
	}
	m.seq++
	a := Assignment{
		ID:          in.ID,
		PersonID:    in.PersonID,
		PositionID:  in.PositionID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsActive:    true,
		IsPlt:       in.IsPlt,
		Status:      StatusActive,
		AppointedBy: in.AppointedBy,
		SKNumber:    in.SKNumber,
		Notes:       in.Notes,
		CreatedBy:   &in.CreatedBy,
		CreatedAt:   testNow.Add(time.Duration(m.seq) * time.Second),
	}
	m.assignments[a.ID] = a
	m.order = append(m.order, a.ID)
	return &a, nil
}

func (m *memStore) CloseAssignment(_ context.Context, in AssignmentClose) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.assignments[in.ID]
	end := in.EndDate
	a.EndDate = &end
	a.IsActive = false
	a.Status = in.Status
	a.Notes = in.Notes
	m.assignments[in.ID] = a
	return &a, nil
}

func (m *memStore) FindPosition(_ context.Context, id uuid.UUID) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) FindPositionByCode(_ context.Context, code string) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindDepartment(_ context.Context, id uuid.UUID) (*Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memStore) PersonExists(_ context.Context, personID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persons[personID], nil
}

func (m *memStore) InsertPosition(_ context.Context, in PositionInsert) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Position{
		ID:             in.ID,
		Code:           in.Code,
		Name:           in.Name,
		DepartmentID:   in.DepartmentID,
		SchoolID:       in.SchoolID,
		HierarchyLevel: in.HierarchyLevel,
		MaxHolders:     in.MaxHolders,
		IsUnique:       in.IsUnique,
		IsActive:       true,
	}
	m.positions[p.ID] = p
	return &p, nil
}

func (m *memStore) DeactivatePosition(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.positions[id]
	p.IsActive = false
	m.positions[id] = p
	return nil
}

func (m *memStore) DeletePosition(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, id)
	return nil
}

func (m *memStore) ListHierarchyNodes(_ context.Context) ([]hierarchy.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hierarchy.Node, 0, len(m.positions))
	for _, p := range m.positions {
		e, ok := m.edges[p.ID]
		if !ok {
			continue
		}
		out = append(out, hierarchy.Node{
			PositionID:     p.ID,
			Code:           p.Code,
			Name:           p.Name,
			HierarchyLevel: p.HierarchyLevel,
			DepartmentID:   p.DepartmentID,
			SchoolID:       p.SchoolID,
			IsActive:       p.IsActive,
			ReportsToID:    e.ReportsToID,
			CoordinatorID:  e.CoordinatorID,
		})
	}
	slices.SortFunc(out, func(a, b hierarchy.Node) int { return a.HierarchyLevel - b.HierarchyLevel })
	return out, nil
}

func (m *memStore) FindHierarchy(_ context.Context, positionID uuid.UUID) (*HierarchyEdges, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[positionID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) InsertHierarchy(_ context.Context, positionID uuid.UUID, edges HierarchyEdges, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[positionID] = edges
	return nil
}

func (m *memStore) UpdateHierarchy(_ context.Context, positionID uuid.UUID, edges HierarchyEdges, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[positionID] = edges
	return nil
}

func (m *memStore) DeleteHierarchy(_ context.Context, positionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, positionID)
	return nil
}

func (m *memStore) CountDependentPositions(_ context.Context, positionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.edges {
		if (e.ReportsToID != nil && *e.ReportsToID == positionID) || (e.CoordinatorID != nil && *e.CoordinatorID == positionID) {
			n++
		}
	}
	return n, nil
}

type fakeAccess struct {
	superadmins map[uuid.UUID]bool
	deny        map[EntityType]bool
}

func allowAll() *fakeAccess {
	return &fakeAccess{superadmins: map[uuid.UUID]bool{}, deny: map[EntityType]bool{}}
}

func (f *fakeAccess) GetUserContext(_ context.Context, actorID uuid.UUID) (UserContext, error) {
	return UserContext{ActorID: actorID, IsSuperadmin: f.superadmins[actorID]}, nil
}

func (f *fakeAccess) CanAccessRecord(_ context.Context, _ UserContext, entity EntityType, _ uuid.UUID, _ Operation) (bool, error) {
	return !f.deny[entity], nil
}

func (f *fakeAccess) CanAccessScope(_ context.Context, _ UserContext, entity EntityType, _ Operation, _, _ *uuid.UUID) (bool, error) {
	return !f.deny[entity], nil
}

type auditRecorder struct {
	mu     sync.Mutex
	events []*AuditEvent
	err    error
}

func (r *auditRecorder) handle(_ context.Context, ev *AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *auditRecorder) actions() []AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditAction, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

type fixture struct {
	store  *memStore
	tx     *memTx
	access *fakeAccess
	audit  *auditRecorder
	opts   []Option
	actor  uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	bus := eventbus.NewEventPublisher(nil)
	rec := &auditRecorder{}
	bus.Subscribe(rec.handle)
	return &fixture{
		store:  store,
		tx:     &memTx{store: store},
		access: allowAll(),
		audit:  rec,
		opts:   []Option{WithClock(fixedClock(testNow)), WithEventBus(bus)},
		actor:  uuid.New(),
	}
}

func (f *fixture) assignments() *AssignmentService {
	return NewAssignmentService(f.store, f.tx, f.access, f.opts...)
}

func (f *fixture) hierarchy(cache HierarchyCache) *HierarchyService {
	return NewHierarchyService(f.store, f.access, append(f.opts, WithHierarchyCache(cache))...)
}

func (f *fixture) positions() *PositionService {
	return NewPositionService(f.store, f.tx, f.access, f.hierarchy(nil), f.opts...)
}
