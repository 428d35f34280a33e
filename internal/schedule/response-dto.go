package schedule

import (
	"time"

	"festival/internal/editions"
)

type SlotResponse struct {
	ID          string    `json:"id"`
	EditionID   string    `json:"edition_id"`
	StageID     string    `json:"stage_id"`
	ArtistID    string    `json:"artist_id"`
	Day         string    `json:"day"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Status      string    `json:"status"`
	IsHeadliner bool      `json:"is_headliner"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SlotChangeResponse struct {
	Slot           SlotResponse `json:"slot"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	Event          string       `json:"event,omitempty"`
}

type ValidationResponse struct {
	Valid     bool       `json:"valid"`
	Conflicts []Conflict `json:"conflicts"`
}

type AuditEntry struct {
	SlotID       string    `json:"slot_id"`
	StageID      string    `json:"stage_id"`
	Stage        string    `json:"stage"`
	Artist       string    `json:"artist"`
	Day          string    `json:"day"`
	Start        TimeOfDay `json:"start"`
	End          TimeOfDay `json:"end"`
	OverlapsWith []string  `json:"overlaps_with"`
}

type AuditReport struct {
	EditionID    string       `json:"edition_id"`
	SlotsChecked int          `json:"slots_checked"`
	Conflicting  int          `json:"conflicting"`
	Entries      []AuditEntry `json:"entries"`
}

type CopyResult struct {
	Created           int  `json:"created"`
	SkippedOutOfRange int  `json:"skipped_out_of_range"`
	SkippedConflicts  int  `json:"skipped_conflicts"`
	SkippedDuplicate  int  `json:"skipped_duplicate"`
	TotalSource       int  `json:"total_source"`
	OffsetDays        int  `json:"offset_days"`
	DryRun            bool `json:"dry_run"`
}

func (s *Slot) ToResponse() SlotResponse {
	return SlotResponse{
		ID:          s.ID.String(),
		EditionID:   s.EditionID.String(),
		StageID:     s.StageID.String(),
		ArtistID:    s.ArtistID.String(),
		Day:         s.Day.Format(editions.DateLayout),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Status:      s.Status.String(),
		IsHeadliner: s.IsHeadliner,
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (c *SlotChange) ToResponse() SlotChangeResponse {
	resp := SlotChangeResponse{Slot: c.After.ToResponse()}
	if c.Before != nil && c.Before.Status != c.After.Status {
		resp.PreviousStatus = c.Before.Status.String()
	}
	if event, ok := c.EventType(); ok {
		resp.Event = string(event)
	}
	return resp
}
