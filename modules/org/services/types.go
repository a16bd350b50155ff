package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/capacity"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/validity"
)

type AssignmentStatus string

const (
	StatusActive            AssignmentStatus = "ACTIVE"
	StatusPendingValidation AssignmentStatus = "PENDING_VALIDATION"
	StatusTerminated        AssignmentStatus = "TERMINATED"
	StatusTransferred       AssignmentStatus = "TRANSFERRED"
)

type Position struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	SchoolID       *uuid.UUID `json:"school_id"`
	HierarchyLevel int        `json:"hierarchy_level"`
	MaxHolders     int        `json:"max_holders"`
	IsUnique       bool       `json:"is_unique"`
	IsActive       bool       `json:"is_active"`
}

func (p Position) capacityRules(maxActing int) capacity.Rules {
	return capacity.Rules{IsUnique: p.IsUnique, MaxHolders: p.MaxHolders, MaxActing: maxActing}
}

type Department struct {
	ID       uuid.UUID  `json:"id"`
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	SchoolID *uuid.UUID `json:"school_id"`
	IsActive bool       `json:"is_active"`
}

type Assignment struct {
	ID          uuid.UUID        `json:"id"`
	PersonID    uuid.UUID        `json:"person_id"`
	PositionID  uuid.UUID        `json:"position_id"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
	IsActive    bool             `json:"is_active"`
	IsPlt       bool             `json:"is_plt"`
	Status      AssignmentStatus `json:"status"`
	AppointedBy *uuid.UUID       `json:"appointed_by"`
	SKNumber    *string          `json:"sk_number"`
	Notes       *string          `json:"notes"`
	CreatedBy   *uuid.UUID       `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (a Assignment) interval() validity.Interval {
	return validity.New(a.StartDate, a.EndDate)
}

func (a Assignment) holder() capacity.Holder {
	return capacity.Holder{
		AssignmentID: a.ID,
		PersonID:     a.PersonID,
		IsActive:     a.IsActive,
		IsPlt:        a.IsPlt,
		StartDate:    a.StartDate,
		EndDate:      a.EndDate,
	}
}

// Holding is an active assignment joined with its position.
type Holding struct {
	AssignmentID   uuid.UUID  `json:"assignment_id"`
	PositionID     uuid.UUID  `json:"position_id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	HierarchyLevel int        `json:"hierarchy_level"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	SchoolID       *uuid.UUID `json:"school_id"`
	IsPlt          bool       `json:"is_plt"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

func (h Holding) node() hierarchy.Node {
	return hierarchy.Node{
		PositionID:     h.PositionID,
		Code:           h.Code,
		Name:           h.Name,
		HierarchyLevel: h.HierarchyLevel,
		DepartmentID:   h.DepartmentID,
		SchoolID:       h.SchoolID,
		IsActive:       true,
	}
}

type AssignmentInsert struct {
	ID          uuid.UUID
	PersonID    uuid.UUID
	PositionID  uuid.UUID
	StartDate   time.Time
	EndDate     *time.Time
	IsPlt       bool
	AppointedBy *uuid.UUID
	SKNumber    *string
	Notes       *string
	CreatedBy   uuid.UUID
}

type AssignmentClose struct {
	ID      uuid.UUID
	EndDate time.Time
	Status  AssignmentStatus
	Notes   *string
}

type PositionInsert struct {
	ID             uuid.UUID
	Code           string
	Name           string
	DepartmentID   *uuid.UUID
	SchoolID       *uuid.UUID
	HierarchyLevel int
	MaxHolders     int
	IsUnique       bool
	CreatedBy      uuid.UUID
}

type HierarchyEdges struct {
	ReportsToID   *uuid.UUID `json:"reports_to_id"`
	CoordinatorID *uuid.UUID `json:"coordinator_id"`
}

// AssignmentRequest is the assign input. Dates are interpreted in UTC.
type AssignmentRequest struct {
	PersonID    uuid.UUID  `json:"person_id" validate:"required"`
	PositionID  uuid.UUID  `json:"position_id" validate:"required"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     *time.Time `json:"end_date"`
	IsPlt       bool       `json:"is_plt"`
	AppointedBy *uuid.UUID `json:"appointed_by"`
	SKNumber    *string    `json:"sk_number" validate:"omitempty,max=100"`
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
}

type TerminationRequest struct {
	AssignmentID uuid.UUID `json:"assignment_id" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	Reason       *string   `json:"reason" validate:"omitempty,max=500"`
}

type TransferRequest struct {
	AssignmentID  uuid.UUID  `json:"assignment_id" validate:"required"`
	NewPositionID uuid.UUID  `json:"new_position_id" validate:"required"`
	TransferDate  time.Time  `json:"transfer_date" validate:"required"`
	EndDate       *time.Time `json:"end_date"`
	IsPlt         bool       `json:"is_plt"`
	AppointedBy   *uuid.UUID `json:"appointed_by"`
	SKNumber      *string    `json:"sk_number" validate:"omitempty,max=100"`
	Notes         *string    `json:"notes" validate:"omitempty,max=2000"`
}

type CreatePositionRequest struct {
	Code           string     `json:"code" validate:"required,max=50"`
	Name           string     `json:"name" validate:"required,max=255"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	SchoolID       *uuid.UUID `json:"school_id"`
	HierarchyLevel int        `json:"hierarchy_level" validate:"required,min=1"`
	MaxHolders     int        `json:"max_holders" validate:"required,min=1"`
	IsUnique       bool       `json:"is_unique"`
	ReportsToID    *uuid.UUID `json:"reports_to_id"`
	CoordinatorID  *uuid.UUID `json:"coordinator_id"`
}

type UpdateHierarchyRequest struct {
	PositionID    uuid.UUID  `json:"position_id" validate:"required"`
	ReportsToID   *uuid.UUID `json:"reports_to_id"`
	CoordinatorID *uuid.UUID `json:"coordinator_id"`
}

// PositionHolders is the classified holder list of a position.
type PositionHolders struct {
	PositionID     uuid.UUID                  `json:"position_id"`
	AsOf           time.Time                  `json:"as_of"`
	Holders        []capacity.ClassifiedHolder `json:"holders"`
	ActiveNonPlt   int                        `json:"active_non_plt"`
	ActivePlt      int                        `json:"active_plt"`
	HistoricalRows int                        `json:"historical"`
}
