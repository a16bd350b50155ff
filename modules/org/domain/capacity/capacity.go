// Package capacity decides whether a position can accept another holder.
package capacity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type HolderStatus string

const (
	ActiveNonActing HolderStatus = "active"
	ActingHolder    HolderStatus = "acting"
	Historical      HolderStatus = "historical"
)

// Holder is the minimum a capacity decision needs to know about an assignment.
type Holder struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	PersonID     uuid.UUID  `json:"person_id"`
	IsActive     bool       `json:"is_active"`
	IsPlt        bool       `json:"is_plt"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// StatusAt classifies a holder as of t. An assignment whose end date has
// passed is historical even if the row was never deactivated.
func (h Holder) StatusAt(t time.Time) HolderStatus {
	if !h.IsActive {
		return Historical
	}
	if h.EndDate != nil && !h.EndDate.After(t) {
		return Historical
	}
	if h.IsPlt {
		return ActingHolder
	}
	return ActiveNonActing
}

type ClassifiedHolder struct {
	Holder
	Status HolderStatus `json:"status"`
}

// Snapshot is the holder list of one position classified once.
type Snapshot struct {
	Holders        []ClassifiedHolder
	ActiveNonPlt   int
	ActivePlt      int
	HistoricalRows int
}

func Classify(holders []Holder, at time.Time) Snapshot {
	out := Snapshot{Holders: make([]ClassifiedHolder, 0, len(holders))}
	for _, h := range holders {
		st := h.StatusAt(at)
		switch st {
		case ActiveNonActing:
			out.ActiveNonPlt++
		case ActingHolder:
			out.ActivePlt++
		default:
			out.HistoricalRows++
		}
		out.Holders = append(out.Holders, ClassifiedHolder{Holder: h, Status: st})
	}
	return out
}

func (s Snapshot) ByStatus(st HolderStatus) []ClassifiedHolder {
	out := make([]ClassifiedHolder, 0, len(s.Holders))
	for _, h := range s.Holders {
		if h.Status == st {
			out = append(out, h)
		}
	}
	return out
}

type Rules struct {
	IsUnique   bool
	MaxHolders int
	// MaxActing caps acting holders independently of MaxHolders.
	MaxActing int
}

const DefaultMaxActing = 2

var (
	ErrUniquePositionOccupied = errors.New("unique position already has an active holder")
	ErrCapacityExceeded       = errors.New("position has reached its maximum number of holders")
	ErrActingLimitExceeded    = errors.New("position has reached its maximum number of acting holders")
)

// Check is a pure decision over a snapshot.
func Check(s Snapshot, r Rules, isPlt bool) error {
	if isPlt {
		limit := r.MaxActing
		if limit <= 0 {
			limit = DefaultMaxActing
		}
		if s.ActivePlt >= limit {
			return ErrActingLimitExceeded
		}
		return nil
	}
	if r.IsUnique && s.ActiveNonPlt > 0 {
		return ErrUniquePositionOccupied
	}
	if s.ActiveNonPlt >= r.MaxHolders {
		return ErrCapacityExceeded
	}
	return nil
}
