package schedule

import (
	"sync"
	"time"

	"festival/internal/editions"
	"festival/internal/shared/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SlotFields are the placement fields shared by validate, probe and create
type SlotFields struct {
	EditionID string `json:"edition_id" form:"edition_id" binding:"required,uuid"`
	StageID   string `json:"stage_id" form:"stage_id" binding:"required,uuid"`
	ArtistID  string `json:"artist_id" form:"artist_id" binding:"required,uuid"`
	Day       string `json:"day" form:"day" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" form:"start_time" binding:"required,clock"`
	EndTime   string `json:"end_time" form:"end_time" binding:"required,clock"`
}

type ValidateSlotRequest struct {
	SlotFields
	ExcludingID string `json:"excluding_id" form:"excluding_id" binding:"omitempty,uuid"`
}

type CreateSlotRequest struct {
	SlotFields
	Status      string `json:"status" binding:"omitempty,oneof=tentative confirmed canceled"`
	IsHeadliner bool   `json:"is_headliner"`
	Notes       string `json:"notes" binding:"max=4000"`
}

type UpdateSlotRequest struct {
	StageID     *string `json:"stage_id" binding:"omitempty,uuid"`
	ArtistID    *string `json:"artist_id" binding:"omitempty,uuid"`
	Day         *string `json:"day" binding:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" binding:"omitempty,clock"`
	EndTime     *string `json:"end_time" binding:"omitempty,clock"`
	Status      *string `json:"status" binding:"omitempty,oneof=tentative confirmed canceled"`
	IsHeadliner *bool   `json:"is_headliner"`
	Notes       *string `json:"notes" binding:"omitempty,max=4000"`
}

type CopyTemplateRequest struct {
	FromEditionID string `json:"from_edition" binding:"required,uuid"`
	ToEditionID   string `json:"to_edition" binding:"required,uuid"`
	// StageMapping maps source stage ids to destination stage ids
	StageMapping map[string]string `json:"stage_mapping" binding:"omitempty,dive,keys,uuid,endkeys,uuid"`
	TargetStatus string            `json:"target_status" binding:"omitempty,oneof=tentative confirmed"`
	DryRun       bool              `json:"dry_run"`
	// ShiftDays overrides the offset derived from the two editions' start dates
	ShiftDays *int `json:"shift_days"`
}

var registerOnce sync.Once

// RegisterValidators installs the custom "clock" rule (HH:MM) on gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
				_, err := ParseTimeOfDay(fl.Field().String())
				return err == nil
			})
		}
	})
}

func (f SlotFields) toSlot() (*Slot, error) {
	editionID, err := parseID("edition_id", f.EditionID)
	if err != nil {
		return nil, err
	}
	stageID, err := parseID("stage_id", f.StageID)
	if err != nil {
		return nil, err
	}
	artistID, err := parseID("artist_id", f.ArtistID)
	if err != nil {
		return nil, err
	}
	day, err := parseDay(f.Day)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", f.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("end_time", f.EndTime)
	if err != nil {
		return nil, err
	}

	return &Slot{
		EditionID: editionID,
		StageID:   stageID,
		ArtistID:  artistID,
		Day:       day,
		StartTime: start,
		EndTime:   end,
		Status:    StatusTentative,
	}, nil
}

func (r ValidateSlotRequest) toCandidate() (*Slot, uuid.UUID, error) {
	slot, err := r.SlotFields.toSlot()
	if err != nil {
		return nil, uuid.Nil, err
	}
	excluding := uuid.Nil
	if r.ExcludingID != "" {
		if excluding, err = parseID("excluding_id", r.ExcludingID); err != nil {
			return nil, uuid.Nil, err
		}
	}
	return slot, excluding, nil
}

func (r CreateSlotRequest) toSlot() (*Slot, error) {
	slot, err := r.SlotFields.toSlot()
	if err != nil {
		return nil, err
	}
	if r.Status != "" {
		slot.Status = SlotStatus(r.Status)
		if !slot.Status.IsValid() {
			return nil, apperror.Validation("status", "unknown status "+r.Status)
		}
	}
	slot.IsHeadliner = r.IsHeadliner
	slot.Notes = r.Notes
	return slot, nil
}

// applyTo overlays the set fields onto slot
func (r UpdateSlotRequest) applyTo(slot *Slot) error {
	var err error
	if r.StageID != nil {
		if slot.StageID, err = parseID("stage_id", *r.StageID); err != nil {
			return err
		}
	}
	if r.ArtistID != nil {
		if slot.ArtistID, err = parseID("artist_id", *r.ArtistID); err != nil {
			return err
		}
	}
	if r.Day != nil {
		if slot.Day, err = parseDay(*r.Day); err != nil {
			return err
		}
	}
	if r.StartTime != nil {
		if slot.StartTime, err = parseClock("start_time", *r.StartTime); err != nil {
			return err
		}
	}
	if r.EndTime != nil {
		if slot.EndTime, err = parseClock("end_time", *r.EndTime); err != nil {
			return err
		}
	}
	if r.Status != nil {
		status := SlotStatus(*r.Status)
		if !status.IsValid() {
			return apperror.Validation("status", "unknown status "+*r.Status)
		}
		slot.Status = status
	}
	if r.IsHeadliner != nil {
		slot.IsHeadliner = *r.IsHeadliner
	}
	if r.Notes != nil {
		slot.Notes = *r.Notes
	}
	return nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperror.Validation(field, "must be a valid UUID")
	}
	return id, nil
}

func parseDay(value string) (time.Time, error) {
	day, err := editions.ParseDate(value)
	if err != nil {
		return time.Time{}, apperror.Validation("day", "must be a date in YYYY-MM-DD format")
	}
	return day, nil
}

func parseClock(field, value string) (TimeOfDay, error) {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		return 0, apperror.Validation(field, "must be a time in HH:MM format")
	}
	return t, nil
}
