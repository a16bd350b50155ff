package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
)

// OrgRepository is the Postgres implementation of services.Repository. Every
// method runs on the transaction bound to ctx, or on the pool when there is
// none.
type OrgRepository struct{}

func NewOrgRepository() *OrgRepository {
	return &OrgRepository{}
}

var _ services.Repository = (*OrgRepository)(nil)

const assignmentColumns = `
	a.id,
	a.person_id,
	a.position_id,
	a.start_date,
	a.end_date,
	a.is_active,
	a.is_plt,
	a.status,
	a.appointed_by,
	a.sk_number,
	a.notes,
	a.created_by,
	a.created_at,
	a.updated_at`

const positionColumns = `
	p.id,
	p.code,
	p.name,
	p.department_id,
	p.school_id,
	p.hierarchy_level,
	p.max_holders,
	p.is_unique,
	p.is_active`

func scanAssignment(row pgx.Row) (*services.Assignment, error) {
	var (
		a                      services.Assignment
		end                    pgtype.Timestamptz
		appointedBy, createdBy pgtype.UUID
		skNumber, notes        pgtype.Text
		status                 string
	)
	if err := row.Scan(
		&a.ID,
		&a.PersonID,
		&a.PositionID,
		&a.StartDate,
		&end,
		&a.IsActive,
		&a.IsPlt,
		&status,
		&appointedBy,
		&skNumber,
		&notes,
		&createdBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.StartDate = a.StartDate.UTC()
	a.EndDate = nullableTime(end)
	a.Status = services.AssignmentStatus(status)
	a.AppointedBy = nullableUUID(appointedBy)
	a.SKNumber = nullableText(skNumber)
	a.Notes = nullableText(notes)
	a.CreatedBy = nullableUUID(createdBy)
	return &a, nil
}

func scanPosition(row pgx.Row) (*services.Position, error) {
	var (
		p            services.Position
		dept, school pgtype.UUID
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &dept, &school, &p.HierarchyLevel, &p.MaxHolders, &p.IsUnique, &p.IsActive); err != nil {
		return nil, err
	}
	p.DepartmentID = nullableUUID(dept)
	p.SchoolID = nullableUUID(school)
	return &p, nil
}

func collectAssignments(rows pgx.Rows) ([]services.Assignment, error) {
	defer rows.Close()
	out := make([]services.Assignment, 0, 8)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *OrgRepository) FindAssignment(ctx context.Context, id uuid.UUID) (*services.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(tx.QueryRow(ctx, `SELECT`+assignmentColumns+`
FROM position_assignments a
WHERE a.id = $1`, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find assignment")
	}
	return a, nil
}

func (r *OrgRepository) ListPositionAssignments(ctx context.Context, positionID uuid.UUID) ([]services.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT`+assignmentColumns+`
FROM position_assignments a
WHERE a.position_id = $1
ORDER BY a.start_date ASC, a.created_at ASC`, pgUUID(positionID))
	if err != nil {
		return nil, errors.Wrap(err, "list position assignments")
	}
	return collectAssignments(rows)
}

func (r *OrgRepository) ListActiveAssignmentsFor(ctx context.Context, personID, positionID uuid.UUID) ([]services.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT`+assignmentColumns+`
FROM position_assignments a
WHERE a.person_id = $1
	AND a.position_id = $2
	AND a.is_active
ORDER BY a.start_date ASC`, pgUUID(personID), pgUUID(positionID))
	if err != nil {
		return nil, errors.Wrap(err, "list active assignments")
	}
	return collectAssignments(rows)
}

func (r *OrgRepository) ListActiveHoldings(ctx context.Context, personID uuid.UUID) ([]services.Holding, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT
	a.id,
	p.id,
	p.code,
	p.name,
	p.hierarchy_level,
	p.department_id,
	p.school_id,
	a.is_plt,
	a.start_date,
	a.end_date
FROM position_assignments a
JOIN positions p ON p.id = a.position_id
WHERE a.person_id = $1
	AND a.is_active
ORDER BY p.hierarchy_level ASC, a.start_date ASC`, pgUUID(personID))
	if err != nil {
		return nil, errors.Wrap(err, "list active holdings")
	}
	defer rows.Close()

	out := make([]services.Holding, 0, 4)
	for rows.Next() {
		var (
			h            services.Holding
			dept, school pgtype.UUID
			end          pgtype.Timestamptz
		)
		if err := rows.Scan(&h.AssignmentID, &h.PositionID, &h.Code, &h.Name, &h.HierarchyLevel, &dept, &school, &h.IsPlt, &h.StartDate, &end); err != nil {
			return nil, err
		}
		h.DepartmentID = nullableUUID(dept)
		h.SchoolID = nullableUUID(school)
		h.StartDate = h.StartDate.UTC()
		h.EndDate = nullableTime(end)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *OrgRepository) InsertAssignment(ctx context.Context, in services.AssignmentInsert) (*services.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(tx.QueryRow(ctx, `
INSERT INTO position_assignments AS a (
	id,
	person_id,
	position_id,
	start_date,
	end_date,
	is_active,
	is_plt,
	status,
	appointed_by,
	sk_number,
	notes,
	created_by
)
VALUES ($1, $2, $3, $4, $5, true, $6, 'ACTIVE', $7, $8, $9, $10)
RETURNING`+assignmentColumns,
		pgUUID(in.ID),
		pgUUID(in.PersonID),
		pgUUID(in.PositionID),
		in.StartDate.UTC(),
		pgNullableTime(in.EndDate),
		in.IsPlt,
		pgNullableUUID(in.AppointedBy),
		pgNullableText(in.SKNumber),
		pgNullableText(in.Notes),
		pgNullableUUID(&in.CreatedBy),
	))
	if err != nil {
		return nil, errors.Wrap(err, "insert assignment")
	}
	return a, nil
}

func (r *OrgRepository) CloseAssignment(ctx context.Context, in services.AssignmentClose) (*services.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(tx.QueryRow(ctx, `
UPDATE position_assignments AS a
SET
	end_date = $2,
	is_active = false,
	status = $3,
	notes = $4,
	updated_at = now()
WHERE a.id = $1
RETURNING`+assignmentColumns,
		pgUUID(in.ID),
		in.EndDate.UTC(),
		string(in.Status),
		pgNullableText(in.Notes),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Errorf("close assignment %s: not found", in.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "close assignment")
	}
	return a, nil
}

func (r *OrgRepository) FindPosition(ctx context.Context, id uuid.UUID) (*services.Position, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPosition(tx.QueryRow(ctx, `SELECT`+positionColumns+`
FROM positions p
WHERE p.id = $1`, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find position")
	}
	return p, nil
}

func (r *OrgRepository) FindPositionByCode(ctx context.Context, code string) (*services.Position, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPosition(tx.QueryRow(ctx, `SELECT`+positionColumns+`
FROM positions p
WHERE p.code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find position by code")
	}
	return p, nil
}

func (r *OrgRepository) FindDepartment(ctx context.Context, id uuid.UUID) (*services.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var (
		d      services.Department
		school pgtype.UUID
	)
	err = tx.QueryRow(ctx, `
SELECT id, code, name, school_id, is_active
FROM departments
WHERE id = $1`, pgUUID(id)).Scan(&d.ID, &d.Code, &d.Name, &school, &d.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find department")
	}
	d.SchoolID = nullableUUID(school)
	return &d, nil
}

func (r *OrgRepository) PersonExists(ctx context.Context, personID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE id = $1)`, pgUUID(personID)).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check person")
	}
	return exists, nil
}

func (r *OrgRepository) InsertPosition(ctx context.Context, in services.PositionInsert) (*services.Position, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPosition(tx.QueryRow(ctx, `
INSERT INTO positions AS p (
	id,
	code,
	name,
	department_id,
	school_id,
	hierarchy_level,
	max_holders,
	is_unique,
	created_by
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING`+positionColumns,
		pgUUID(in.ID),
		in.Code,
		in.Name,
		pgNullableUUID(in.DepartmentID),
		pgNullableUUID(in.SchoolID),
		in.HierarchyLevel,
		in.MaxHolders,
		in.IsUnique,
		pgNullableUUID(&in.CreatedBy),
	))
	if err != nil {
		return nil, errors.Wrap(err, "insert position")
	}
	return p, nil
}

func (r *OrgRepository) DeactivatePosition(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE positions SET is_active = false, updated_at = now() WHERE id = $1`, pgUUID(id)); err != nil {
		return errors.Wrap(err, "deactivate position")
	}
	return nil
}

func (r *OrgRepository) DeletePosition(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE id = $1`, pgUUID(id)); err != nil {
		return errors.Wrap(err, "delete position")
	}
	return nil
}

func (r *OrgRepository) ListHierarchyNodes(ctx context.Context) ([]hierarchy.Node, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT
	p.id,
	p.code,
	p.name,
	p.hierarchy_level,
	p.department_id,
	p.school_id,
	p.is_active,
	h.reports_to_id,
	h.coordinator_id
FROM positions p
JOIN position_hierarchy h ON h.position_id = p.id
ORDER BY p.hierarchy_level ASC, p.code ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list hierarchy")
	}
	defer rows.Close()

	out := make([]hierarchy.Node, 0, 64)
	for rows.Next() {
		var (
			n                                    hierarchy.Node
			dept, school, reportsTo, coordinator pgtype.UUID
		)
		if err := rows.Scan(&n.PositionID, &n.Code, &n.Name, &n.HierarchyLevel, &dept, &school, &n.IsActive, &reportsTo, &coordinator); err != nil {
			return nil, err
		}
		n.DepartmentID = nullableUUID(dept)
		n.SchoolID = nullableUUID(school)
		n.ReportsToID = nullableUUID(reportsTo)
		n.CoordinatorID = nullableUUID(coordinator)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *OrgRepository) FindHierarchy(ctx context.Context, positionID uuid.UUID) (*services.HierarchyEdges, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var reportsTo, coordinator pgtype.UUID
	err = tx.QueryRow(ctx, `
SELECT reports_to_id, coordinator_id
FROM position_hierarchy
WHERE position_id = $1`, pgUUID(positionID)).Scan(&reportsTo, &coordinator)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find hierarchy")
	}
	return &services.HierarchyEdges{ReportsToID: nullableUUID(reportsTo), CoordinatorID: nullableUUID(coordinator)}, nil
}

func (r *OrgRepository) InsertHierarchy(ctx context.Context, positionID uuid.UUID, edges services.HierarchyEdges, actor uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO position_hierarchy (position_id, reports_to_id, coordinator_id, updated_by)
VALUES ($1, $2, $3, $4)`,
		pgUUID(positionID),
		pgNullableUUID(edges.ReportsToID),
		pgNullableUUID(edges.CoordinatorID),
		pgNullableUUID(&actor),
	); err != nil {
		return errors.Wrap(err, "insert hierarchy")
	}
	return nil
}

func (r *OrgRepository) UpdateHierarchy(ctx context.Context, positionID uuid.UUID, edges services.HierarchyEdges, actor uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE position_hierarchy
SET
	reports_to_id = $2,
	coordinator_id = $3,
	updated_by = $4,
	updated_at = now()
WHERE position_id = $1`,
		pgUUID(positionID),
		pgNullableUUID(edges.ReportsToID),
		pgNullableUUID(edges.CoordinatorID),
		pgNullableUUID(&actor),
	); err != nil {
		return errors.Wrap(err, "update hierarchy")
	}
	return nil
}

func (r *OrgRepository) DeleteHierarchy(ctx context.Context, positionID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM position_hierarchy WHERE position_id = $1`, pgUUID(positionID)); err != nil {
		return errors.Wrap(err, "delete hierarchy")
	}
	return nil
}

func (r *OrgRepository) CountDependentPositions(ctx context.Context, positionID uuid.UUID) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, `
SELECT count(*)
FROM position_hierarchy
WHERE reports_to_id = $1 OR coordinator_id = $1`, pgUUID(positionID)).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count dependent positions")
	}
	return n, nil
}
