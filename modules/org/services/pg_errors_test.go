package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapPgError(t *testing.T) {
	cases := []struct {
		name        string
		err         *pgconn.PgError
		want        Kind
		retryable   bool
		passThrough bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, retryable: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, retryable: true},
		{name: "duplicate position code", err: &pgconn.PgError{Code: "23505", ConstraintName: "positions_code_key"}, want: KindPositionCodeConflict},
		{name: "assignment overlap", err: &pgconn.PgError{Code: "23P01", ConstraintName: "position_assignments_no_overlap"}, want: KindOverlappingAssignment},
		{name: "unknown department", err: &pgconn.PgError{Code: "23503", ConstraintName: "positions_department_fk"}, want: KindDepartmentNotFound},
		{name: "referenced by hierarchy", err: &pgconn.PgError{Code: "23503", ConstraintName: "position_hierarchy_reports_to_fk"}, want: KindHasDependentPositions},
		{name: "unknown person", err: &pgconn.PgError{Code: "23503", ConstraintName: "position_assignments_person_fk"}, want: KindInvalidRequest},
		{name: "inverted range", err: &pgconn.PgError{Code: "23514", ConstraintName: "position_assignments_valid_range"}, want: KindInvalidDateRange},
		{name: "other check", err: &pgconn.PgError{Code: "23514", ConstraintName: "positions_max_holders_check"}, want: KindInvalidRequest},
		{name: "unmapped code", err: &pgconn.PgError{Code: "42P01"}, passThrough: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapPgError(fmt.Errorf("exec: %w", tc.err))
			switch {
			case tc.retryable:
				require.True(t, IsRetryable(got))
				require.ErrorIs(t, got, ErrTransactionConflict)
			case tc.passThrough:
				var pgErr *pgconn.PgError
				require.ErrorAs(t, got, &pgErr)
				require.False(t, IsRetryable(got))
			default:
				require.True(t, IsKind(got, tc.want), "got %v", got)
				var svcErr *ServiceError
				require.ErrorAs(t, got, &svcErr)
				require.ErrorIs(t, svcErr, tc.err)
			}
		})
	}
}

func TestMapPgError_KeepsServiceErrors(t *testing.T) {
	require.NoError(t, mapPgError(nil))

	orig := newServiceError(KindUniquePositionOccupied, "occupied", nil)
	require.Same(t, orig, mapPgError(orig))

	plain := errors.New("boom")
	require.Equal(t, plain, mapPgError(plain))
}
