package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/authz"
)

func newEnforcingAuthz(t *testing.T) *authz.Service {
	t.Helper()
	svc, err := authz.NewService(authz.Config{FlagProvider: authz.StaticFlagProvider(authz.ModeEnforce)})
	require.NoError(t, err)
	require.NoError(t, svc.Grant("superadmin", "*", "*"))
	require.NoError(t, svc.Grant("org_admin", "position", "*"))
	require.NoError(t, svc.Grant("org_admin", "position_assignment", "*"))
	require.NoError(t, svc.Grant("staff", "position", "read"))
	return svc
}

func TestScopedAccess_Superadmin(t *testing.T) {
	store := newMemStore()
	az := newEnforcingAuthz(t)
	admin := uuid.New()
	require.NoError(t, az.AssignRole(authz.SubjectForUser(admin), "superadmin"))
	access := NewScopedAccess(az, store)

	uc, err := access.GetUserContext(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, uc.IsSuperadmin)

	ok, err := access.CanAccessRecord(context.Background(), uc, EntityHierarchy, uuid.New(), OpDelete)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestScopedAccess_RecordScope(t *testing.T) {
	store := newMemStore()
	school := uuid.New()
	mine := store.addDepartment("MINE", &school)
	sibling := store.addDepartment("SIBLING", &school)
	foreign := store.addDepartment("FOREIGN", ptr(uuid.New()))
	held := store.addPosition("HELD", 2, 1, true, &mine.ID)
	sameSchool := store.addPosition("SAME_SCHOOL", 3, 1, true, &sibling.ID)
	elsewhere := store.addPosition("ELSEWHERE", 3, 1, true, &foreign.ID)

	actor := store.addPerson()
	store.putAssignment(Assignment{PersonID: actor, PositionID: held.ID, StartDate: day(2024, 1, 1), IsActive: true})
	foreignRow := store.putAssignment(Assignment{PersonID: store.addPerson(), PositionID: elsewhere.ID, StartDate: day(2024, 1, 1), IsActive: true})

	az := newEnforcingAuthz(t)
	require.NoError(t, az.AssignRole(authz.SubjectForUser(actor), "org_admin"))
	access := NewScopedAccess(az, store)
	ctx := context.Background()

	uc, err := access.GetUserContext(ctx, actor)
	require.NoError(t, err)
	require.False(t, uc.IsSuperadmin)
	require.Equal(t, []uuid.UUID{mine.ID}, uc.ScopedDepartmentIDs)
	require.Equal(t, []uuid.UUID{school}, uc.ScopedSchoolIDs)

	cases := []struct {
		name   string
		entity EntityType
		id     uuid.UUID
		op     Operation
		want   bool
	}{
		{"own department", EntityPosition, held.ID, OpUpdate, true},
		{"same school", EntityPosition, sameSchool.ID, OpCreate, true},
		{"other school", EntityPosition, elsewhere.ID, OpRead, false},
		{"assignment resolves to its position", EntityAssignment, foreignRow.ID, OpUpdate, false},
		{"missing assignment is left to validation", EntityAssignment, uuid.New(), OpUpdate, true},
		{"no hierarchy policy", EntityHierarchy, held.ID, OpUpdate, false},
		{"new record without id", EntityPosition, uuid.Nil, OpCreate, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := access.CanAccessRecord(ctx, uc, tc.entity, tc.id, tc.op)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestScopedAccess_PolicyGatesOperation(t *testing.T) {
	store := newMemStore()
	d := store.addDepartment("D", nil)
	p := store.addPosition("P", 2, 1, true, &d.ID)
	actor := store.addPerson()
	store.putAssignment(Assignment{PersonID: actor, PositionID: p.ID, StartDate: day(2024, 1, 1), IsActive: true})

	az := newEnforcingAuthz(t)
	require.NoError(t, az.AssignRole(authz.SubjectForUser(actor), "staff"))
	access := NewScopedAccess(az, store)

	_, err := checkAccess(context.Background(), access, actor, EntityPosition, p.ID, OpRead)
	require.NoError(t, err)

	_, err = checkAccess(context.Background(), access, actor, EntityPosition, p.ID, OpUpdate)
	svcErr := requireKind(t, err, KindAccessDenied)
	require.Equal(t, "position", svcErr.Meta["entity_type"])
}

func TestCreatePosition_ChecksActorScope(t *testing.T) {
	f := newFixture()
	school := uuid.New()
	mine := f.store.addDepartment("MINE", &school)
	sibling := f.store.addDepartment("SIBLING", &school)
	foreign := f.store.addDepartment("FOREIGN", ptr(uuid.New()))
	held := f.store.addPosition("HELD", 2, 1, true, &mine.ID)

	actor := f.store.addPerson()
	f.store.putAssignment(Assignment{PersonID: actor, PositionID: held.ID, StartDate: day(2024, 1, 1), IsActive: true})

	az := newEnforcingAuthz(t)
	require.NoError(t, az.AssignRole(authz.SubjectForUser(actor), "org_admin"))
	svc := NewPositionService(f.store, f.tx, NewScopedAccess(az, f.store), f.hierarchy(nil), f.opts...)
	ctx := context.Background()

	_, err := svc.CreatePosition(ctx, CreatePositionRequest{Code: "OUTSIDE", Name: "Outside", DepartmentID: &foreign.ID, HierarchyLevel: 3, MaxHolders: 1}, actor)
	requireKind(t, err, KindAccessDenied)
	existing, err := f.store.FindPositionByCode(ctx, "OUTSIDE")
	require.NoError(t, err)
	require.Nil(t, existing)

	_, err = svc.CreatePosition(ctx, CreatePositionRequest{Code: "UNSCOPED", Name: "Unscoped", HierarchyLevel: 3, MaxHolders: 1}, actor)
	requireKind(t, err, KindAccessDenied)

	pos, err := svc.CreatePosition(ctx, CreatePositionRequest{Code: "INSIDE", Name: "Inside", DepartmentID: &sibling.ID, HierarchyLevel: 3, MaxHolders: 1}, actor)
	require.NoError(t, err)
	require.Equal(t, &school, pos.SchoolID)
}
