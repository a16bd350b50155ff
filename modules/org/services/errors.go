package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable error code surfaced to callers.
type Kind string

const (
	KindInvalidRequest         Kind = "InvalidRequest"
	KindInvalidDateRange       Kind = "InvalidDateRange"
	KindPositionNotFound       Kind = "PositionNotFound"
	KindPositionInactive       Kind = "PositionInactive"
	KindTargetPositionNotFound Kind = "TargetPositionNotFound"
	KindAppointerNotFound      Kind = "AppointerNotFound"
	KindAssignmentNotFound     Kind = "AssignmentNotFound"
	KindAssignmentNotActive    Kind = "AssignmentNotActive"
	KindDepartmentNotFound     Kind = "DepartmentNotFound"

	KindUniquePositionOccupied Kind = "UniquePositionOccupied"
	KindCapacityExceeded       Kind = "CapacityExceeded"
	KindActingLimitExceeded    Kind = "ActingLimitExceeded"

	KindOverlappingAssignment Kind = "OverlappingAssignment"
	KindSameLevelConflict     Kind = "SameLevelConflict"

	KindActingRequiresEndDate  Kind = "ActingRequiresEndDate"
	KindActingDurationExceeded Kind = "ActingDurationExceeded"

	KindHasDependentPositions    Kind = "HasDependentPositions"
	KindHasActiveHolders         Kind = "HasActiveHolders"
	KindHierarchyCycle           Kind = "HierarchyCycle"
	KindPositionCodeConflict     Kind = "PositionCodeConflict"
	KindDepartmentSchoolMismatch Kind = "DepartmentSchoolMismatch"

	KindInsufficientAuthority Kind = "InsufficientAuthority"
	KindAccessDenied          Kind = "AccessDenied"
)

var kindStatus = map[Kind]int{
	KindInvalidRequest:           http.StatusBadRequest,
	KindInvalidDateRange:         http.StatusBadRequest,
	KindPositionNotFound:         http.StatusNotFound,
	KindTargetPositionNotFound:   http.StatusNotFound,
	KindAppointerNotFound:        http.StatusNotFound,
	KindAssignmentNotFound:       http.StatusNotFound,
	KindDepartmentNotFound:       http.StatusNotFound,
	KindPositionInactive:         http.StatusUnprocessableEntity,
	KindAssignmentNotActive:      http.StatusUnprocessableEntity,
	KindUniquePositionOccupied:   http.StatusConflict,
	KindCapacityExceeded:         http.StatusConflict,
	KindActingLimitExceeded:      http.StatusConflict,
	KindOverlappingAssignment:    http.StatusConflict,
	KindSameLevelConflict:        http.StatusConflict,
	KindActingRequiresEndDate:    http.StatusUnprocessableEntity,
	KindActingDurationExceeded:   http.StatusUnprocessableEntity,
	KindHasDependentPositions:    http.StatusConflict,
	KindHasActiveHolders:         http.StatusConflict,
	KindHierarchyCycle:           http.StatusConflict,
	KindPositionCodeConflict:     http.StatusConflict,
	KindDepartmentSchoolMismatch: http.StatusUnprocessableEntity,
	KindInsufficientAuthority:    http.StatusForbidden,
	KindAccessDenied:             http.StatusForbidden,
}

// ServiceError is a business-rule rejection. It is never retried.
type ServiceError struct {
	Status  int
	Code    Kind
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(kind Kind, message string, cause error) *ServiceError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	return &ServiceError{Status: status, Code: kind, Message: message, Cause: cause}
}

func (e *ServiceError) with(key, value string) *ServiceError {
	if e.Meta == nil {
		e.Meta = map[string]string{}
	}
	e.Meta[key] = value
	return e
}

// KindOf returns the kind of a business error, or "" for anything else.
func KindOf(err error) Kind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrTransactionConflict marks a serialization failure or deadlock. The
// operation had no effect and may be replayed with the same input.
var ErrTransactionConflict = errors.New("org: transaction conflict, retry the operation")

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
