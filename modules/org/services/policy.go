package services

import (
	"time"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/capacity"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/validity"
)

// Policy holds the tunable limits of the assignment rules.
type Policy struct {
	Validity validity.Policy
	// ActingMaxDuration bounds end-start of an acting (plt) assignment.
	ActingMaxDuration validity.Span
	MaxActingHolders  int
	MaxChainDepth     int
}

func DefaultPolicy() Policy {
	return Policy{
		Validity:          validity.DefaultPolicy(),
		ActingMaxDuration: validity.Span{Months: 6},
		MaxActingHolders:  capacity.DefaultMaxActing,
		MaxChainDepth:     hierarchy.DefaultMaxChainDepth,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Validity == (validity.Policy{}) {
		p.Validity = d.Validity
	}
	if p.ActingMaxDuration == (validity.Span{}) {
		p.ActingMaxDuration = d.ActingMaxDuration
	}
	if p.MaxActingHolders <= 0 {
		p.MaxActingHolders = d.MaxActingHolders
	}
	if p.MaxChainDepth <= 0 {
		p.MaxChainDepth = d.MaxChainDepth
	}
	return p
}

// Clock is injected so rules relative to "now" can be pinned in tests.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
