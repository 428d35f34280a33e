package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"festival/internal/notifications"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeOfDay is a wall-clock time stored as seconds since midnight
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts HH:MM or HH:MM:SS
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}

	limits := []int{23, 59, 59}
	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
		}
		switch i {
		case 0:
			total += n * 3600
		case 1:
			total += n * 60
		case 2:
			total += n
		}
	}
	return TimeOfDay(total), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, (int(t)%3600)/60, int(t)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < secondsPerDay
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*t = TimeOfDay(v)
	case int32:
		*t = TimeOfDay(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return err
		}
		*t = TimeOfDay(n)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	return nil
}

// Slot is a scheduled performance of one artist on one stage
type Slot struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	EditionID   uuid.UUID  `json:"edition_id" gorm:"type:uuid;not null;index:idx_slots_partition,priority:1"`
	StageID     uuid.UUID  `json:"stage_id" gorm:"type:uuid;not null;index:idx_slots_partition,priority:3"`
	ArtistID    uuid.UUID  `json:"artist_id" gorm:"type:uuid;not null;index"`
	Day         time.Time  `json:"day" gorm:"type:date;not null;index:idx_slots_partition,priority:2"`
	StartTime   TimeOfDay  `json:"start_time" gorm:"type:integer;not null;index:idx_slots_partition,priority:4"`
	EndTime     TimeOfDay  `json:"end_time" gorm:"type:integer;not null"`
	Status      SlotStatus `json:"status" gorm:"type:varchar(10);not null;default:'tentative';index"`
	IsHeadliner bool       `json:"is_headliner" gorm:"default:false;index"`
	Notes       string     `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *Slot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Slot) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

func (s *Slot) Partition() PartitionKey {
	return NewPartitionKey(s.EditionID, s.StageID, s.Day)
}

func (Slot) TableName() string {
	return "schedule_slots"
}

// SlotChange carries a mutation's before and after state. Before is nil on create.
type SlotChange struct {
	Before *Slot
	After  *Slot
}

// EventType resolves which event the change produces, if any. Edits that
// leave the status untouched produce none.
func (c SlotChange) EventType() (notifications.EventType, bool) {
	switch {
	case c.Before == nil:
		return notifications.EventSlotCreated, true
	case c.Before.Status == c.After.Status:
		return "", false
	case c.After.Status == StatusCanceled:
		return notifications.EventSlotCanceled, true
	default:
		return notifications.EventSlotUpdated, true
	}
}
