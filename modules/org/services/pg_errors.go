package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, ErrTransactionConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		recordWriteConflict("serialization")
		return fmt.Errorf("%w: %s", ErrTransactionConflict, pgErr.Message)
	case "23505": // unique_violation
		recordWriteConflict("unique")
		if pgErr.ConstraintName == "positions_code_key" {
			return newServiceError(KindPositionCodeConflict, "position code already exists", err)
		}
		return newServiceError(KindOverlappingAssignment, "unique constraint violated", err)
	case "23P01": // exclusion_violation
		recordWriteConflict("overlap")
		if strings.Contains(pgErr.ConstraintName, "position_assignments_no_overlap") {
			return newServiceError(KindOverlappingAssignment, "assignment overlaps an existing active assignment", err)
		}
		return newServiceError(KindOverlappingAssignment, "time window overlap", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		switch pgErr.ConstraintName {
		case "positions_department_fk":
			return newServiceError(KindDepartmentNotFound, "department not found", err)
		case "position_hierarchy_reports_to_fk", "position_hierarchy_coordinator_fk":
			return newServiceError(KindHasDependentPositions, "position is referenced by other positions", err)
		case "position_assignments_person_fk":
			return newServiceError(KindInvalidRequest, "person not found", err).with("person_id", "not_found")
		default:
			return newServiceError(KindPositionNotFound, "referenced record not found", err)
		}
	case "23514": // check_violation
		if pgErr.ConstraintName == "position_assignments_valid_range" {
			return newServiceError(KindInvalidDateRange, "end date must be after start date", err)
		}
		return newServiceError(KindInvalidRequest, "check constraint violated", err).with("constraint", pgErr.ConstraintName)
	default:
		return err
	}
}
