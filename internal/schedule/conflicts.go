package schedule

import (
	"bytes"
	"sort"
	"time"

	"festival/internal/editions"

	"github.com/google/uuid"
)

// Interval is a half-open range [Start, End)
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps treats touching endpoints as disjoint
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// PartitionKey identifies the unit of exclusive slot mutation
type PartitionKey struct {
	EditionID uuid.UUID
	StageID   uuid.UUID
	Day       time.Time
}

func NewPartitionKey(editionID, stageID uuid.UUID, day time.Time) PartitionKey {
	return PartitionKey{EditionID: editionID, StageID: stageID, Day: editions.DateOf(day)}
}

func (k PartitionKey) String() string {
	return k.EditionID.String() + "|" + k.StageID.String() + "|" + k.Day.Format(editions.DateLayout)
}

func (k PartitionKey) less(o PartitionKey) bool {
	if c := bytes.Compare(k.EditionID[:], o.EditionID[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(k.StageID[:], o.StageID[:]); c != 0 {
		return c < 0
	}
	return k.Day.Before(o.Day)
}

// DetectConflicts returns the slots in existing that overlap candidate.
// Canceled slots and the slot identified by excluding are ignored. Callers
// pass slots from a single partition.
func DetectConflicts(candidate Interval, existing []Slot, excluding uuid.UUID) []Slot {
	var hits []Slot
	for _, s := range existing {
		if !s.Status.IsActive() {
			continue
		}
		if excluding != uuid.Nil && s.ID == excluding {
			continue
		}
		if candidate.Overlaps(s.Interval()) {
			hits = append(hits, s)
		}
	}
	return hits
}

// Overlap is one slot of an overlapping pair; both sides of every pair are reported.
type Overlap struct {
	Slot         Slot
	OverlapsWith []uuid.UUID
}

// AuditSlots groups slots by partition, sorts each group by start time and
// scans forward only while the next start precedes the current end. Output
// is ordered by partition key, then start time, then slot id.
func AuditSlots(slots []Slot) []Overlap {
	groups := make(map[PartitionKey][]Slot)
	for _, s := range slots {
		if !s.Status.IsActive() {
			continue
		}
		k := s.Partition()
		groups[k] = append(groups[k], s)
	}

	keys := make([]PartitionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	var out []Overlap
	for _, k := range keys {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool {
			if group[i].StartTime != group[j].StartTime {
				return group[i].StartTime < group[j].StartTime
			}
			return bytes.Compare(group[i].ID[:], group[j].ID[:]) < 0
		})

		partners := make([][]uuid.UUID, len(group))
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				if group[j].StartTime >= group[i].EndTime {
					break
				}
				if group[i].ID == group[j].ID {
					continue
				}
				if group[i].Interval().Overlaps(group[j].Interval()) {
					partners[i] = append(partners[i], group[j].ID)
					partners[j] = append(partners[j], group[i].ID)
				}
			}
		}

		for i, s := range group {
			if len(partners[i]) > 0 {
				out = append(out, Overlap{Slot: s, OverlapsWith: partners[i]})
			}
		}
	}
	return out
}
