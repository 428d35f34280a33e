package schedule

import (
	"encoding/json"
	"testing"

	"festival/internal/notifications"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(edition, stage uuid.UUID, day, start, end string, status SlotStatus) Slot {
	return Slot{
		ID:        uuid.New(),
		EditionID: edition,
		StageID:   stage,
		ArtistID:  uuid.New(),
		Day:       mustDate(day),
		StartTime: MustTimeOfDay(start),
		EndTime:   MustTimeOfDay(end),
		Status:    status,
	}
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: MustTimeOfDay("20:00"), End: MustTimeOfDay("21:00")}

	assert.True(t, base.Overlaps(Interval{Start: MustTimeOfDay("20:30"), End: MustTimeOfDay("21:30")}))
	assert.True(t, base.Overlaps(Interval{Start: MustTimeOfDay("19:00"), End: MustTimeOfDay("22:00")}))
	assert.True(t, base.Overlaps(Interval{Start: MustTimeOfDay("20:15"), End: MustTimeOfDay("20:45")}))
	assert.False(t, base.Overlaps(Interval{Start: MustTimeOfDay("21:00"), End: MustTimeOfDay("22:00")}))
	assert.False(t, base.Overlaps(Interval{Start: MustTimeOfDay("19:00"), End: MustTimeOfDay("20:00")}))
}

func TestDetectConflictsSkipsCanceledAndExcluded(t *testing.T) {
	edition, stage := uuid.New(), uuid.New()
	confirmed := slotAt(edition, stage, "2025-07-18", "20:00", "21:00", StatusConfirmed)
	canceled := slotAt(edition, stage, "2025-07-18", "20:00", "21:00", StatusCanceled)
	tentative := slotAt(edition, stage, "2025-07-18", "20:45", "22:00", StatusTentative)
	existing := []Slot{confirmed, canceled, tentative}

	candidate := Interval{Start: MustTimeOfDay("20:30"), End: MustTimeOfDay("21:30")}
	hits := DetectConflicts(candidate, existing, uuid.Nil)
	require.Len(t, hits, 2)
	assert.Equal(t, confirmed.ID, hits[0].ID)
	assert.Equal(t, tentative.ID, hits[1].ID)

	hits = DetectConflicts(candidate, existing, confirmed.ID)
	require.Len(t, hits, 1)
	assert.Equal(t, tentative.ID, hits[0].ID)

	assert.Empty(t, DetectConflicts(Interval{Start: MustTimeOfDay("22:00"), End: MustTimeOfDay("23:00")}, existing, uuid.Nil))
}

func TestAuditSlotsReportsBothSides(t *testing.T) {
	edition, stageA, stageB := uuid.New(), uuid.New(), uuid.New()
	a1 := slotAt(edition, stageA, "2025-07-18", "18:00", "19:30", StatusConfirmed)
	a2 := slotAt(edition, stageA, "2025-07-18", "19:00", "20:00", StatusTentative)
	a3 := slotAt(edition, stageA, "2025-07-18", "20:00", "21:00", StatusConfirmed)
	a4 := slotAt(edition, stageA, "2025-07-18", "18:30", "19:00", StatusCanceled)
	b1 := slotAt(edition, stageB, "2025-07-18", "18:00", "19:30", StatusConfirmed)
	other := slotAt(edition, stageA, "2025-07-19", "19:00", "20:00", StatusConfirmed)

	overlaps := AuditSlots([]Slot{a3, other, b1, a2, a4, a1})
	require.Len(t, overlaps, 2)

	assert.Equal(t, a1.ID, overlaps[0].Slot.ID)
	assert.Equal(t, []uuid.UUID{a2.ID}, overlaps[0].OverlapsWith)
	assert.Equal(t, a2.ID, overlaps[1].Slot.ID)
	assert.Equal(t, []uuid.UUID{a1.ID}, overlaps[1].OverlapsWith)
}

func TestAuditSlotsChainAndDeterminism(t *testing.T) {
	edition, stage := uuid.New(), uuid.New()
	long := slotAt(edition, stage, "2025-07-18", "18:00", "23:00", StatusConfirmed)
	s1 := slotAt(edition, stage, "2025-07-18", "19:00", "20:00", StatusConfirmed)
	s2 := slotAt(edition, stage, "2025-07-18", "20:00", "21:00", StatusConfirmed)
	s3 := slotAt(edition, stage, "2025-07-18", "21:00", "22:00", StatusConfirmed)

	first := AuditSlots([]Slot{s3, long, s2, s1})
	second := AuditSlots([]Slot{s1, s2, s3, long})
	assert.Equal(t, first, second)

	require.Len(t, first, 4)
	assert.Equal(t, long.ID, first[0].Slot.ID)
	assert.Equal(t, []uuid.UUID{s1.ID, s2.ID, s3.ID}, first[0].OverlapsWith)
	for _, o := range first[1:] {
		assert.Equal(t, []uuid.UUID{long.ID}, o.OverlapsWith)
	}
}

func TestAuditSlotsNoConflicts(t *testing.T) {
	edition, stage := uuid.New(), uuid.New()
	a := slotAt(edition, stage, "2025-07-18", "18:00", "19:00", StatusConfirmed)
	b := slotAt(edition, stage, "2025-07-18", "19:00", "20:00", StatusConfirmed)
	assert.Empty(t, AuditSlots([]Slot{a, b}))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("20:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(20*3600+30*60), tod)
	assert.Equal(t, "20:30", tod.String())

	tod, err = ParseTimeOfDay("07:05:09")
	require.NoError(t, err)
	assert.Equal(t, "07:05:09", tod.String())

	for _, bad := range []string{"", "24:00", "7:00", "12:60", "noon", "12:00:00:00"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}

	data, err := json.Marshal(struct {
		At TimeOfDay `json:"at"`
	}{At: MustTimeOfDay("21:00")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"21:00"}`, string(data))

	var decoded struct {
		At TimeOfDay `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"18:15"}`), &decoded))
	assert.Equal(t, MustTimeOfDay("18:15"), decoded.At)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusTentative.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusTentative.CanTransitionTo(StatusCanceled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCanceled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusTentative))
	assert.False(t, StatusCanceled.CanTransitionTo(StatusTentative))
	assert.False(t, StatusCanceled.CanTransitionTo(StatusConfirmed))
}

func TestSlotChangeEventType(t *testing.T) {
	tentative := &Slot{Status: StatusTentative}
	confirmed := &Slot{Status: StatusConfirmed}
	canceled := &Slot{Status: StatusCanceled}

	cases := []struct {
		change SlotChange
		want   notifications.EventType
		emit   bool
	}{
		{SlotChange{After: tentative}, notifications.EventSlotCreated, true},
		{SlotChange{Before: tentative, After: confirmed}, notifications.EventSlotUpdated, true},
		{SlotChange{Before: confirmed, After: canceled}, notifications.EventSlotCanceled, true},
		{SlotChange{Before: confirmed, After: confirmed}, "", false},
	}
	for _, tc := range cases {
		got, emit := tc.change.EventType()
		assert.Equal(t, tc.emit, emit)
		assert.Equal(t, tc.want, got)
	}
}
