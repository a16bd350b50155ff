package capacity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func holder(active, plt bool) Holder {
	return Holder{
		AssignmentID: uuid.New(),
		PersonID:     uuid.New(),
		IsActive:     active,
		IsPlt:        plt,
		StartDate:    now.AddDate(0, -1, 0),
	}
}

func TestClassify_CountsByStatus(t *testing.T) {
	ended := holder(true, false)
	past := now.AddDate(0, 0, -1)
	ended.EndDate = &past

	s := Classify([]Holder{
		holder(true, false),
		holder(true, true),
		holder(false, false),
		holder(false, true),
		ended,
	}, now)

	require.Equal(t, 1, s.ActiveNonPlt)
	require.Equal(t, 1, s.ActivePlt)
	require.Equal(t, 3, s.HistoricalRows)
	require.Len(t, s.ByStatus(Historical), 3)
	require.Equal(t, ActingHolder, s.ByStatus(ActingHolder)[0].Status)
}

func TestCheck_UniquePositionOccupied(t *testing.T) {
	s := Classify([]Holder{holder(true, false)}, now)
	err := Check(s, Rules{IsUnique: true, MaxHolders: 3}, false)
	require.ErrorIs(t, err, ErrUniquePositionOccupied)
}

func TestCheck_CapacityMonotonic(t *testing.T) {
	rules := Rules{MaxHolders: 3}
	var holders []Holder
	for i := 0; i < 3; i++ {
		require.NoError(t, Check(Classify(holders, now), rules, false))
		holders = append(holders, holder(true, false))
	}
	require.ErrorIs(t, Check(Classify(holders, now), rules, false), ErrCapacityExceeded)
}

func TestCheck_ActingHoldersCappedIndependently(t *testing.T) {
	rules := Rules{IsUnique: true, MaxHolders: 1}
	holders := []Holder{holder(true, false), holder(true, true)}

	require.NoError(t, Check(Classify(holders, now), rules, true))

	holders = append(holders, holder(true, true))
	require.ErrorIs(t, Check(Classify(holders, now), rules, true), ErrActingLimitExceeded)
}

func TestCheck_ActingHoldersDoNotCountTowardMaxHolders(t *testing.T) {
	rules := Rules{MaxHolders: 1}
	holders := []Holder{holder(true, true), holder(true, true)}
	require.NoError(t, Check(Classify(holders, now), rules, false))
}

func TestCheck_HistoricalHoldersIgnored(t *testing.T) {
	rules := Rules{IsUnique: true, MaxHolders: 1}
	holders := []Holder{holder(false, false), holder(false, false)}
	require.NoError(t, Check(Classify(holders, now), rules, false))
}
