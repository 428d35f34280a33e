package editions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

// Edition is one yearly instance of the festival
type Edition struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Year      int       `json:"year" gorm:"not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	StartDate time.Time `json:"start_date" gorm:"type:date;not null"`
	EndDate   time.Time `json:"end_date" gorm:"type:date;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Stage is a performance area. A stage with no edition is shared by every
// edition; otherwise only slots of its own edition may use it.
type Stage struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	EditionID *uuid.UUID `json:"edition_id,omitempty" gorm:"type:uuid;uniqueIndex:idx_stages_edition_name,priority:1"`
	Name      string     `json:"name" gorm:"not null;size:120;uniqueIndex:idx_stages_edition_name,priority:2"`
	Capacity  int        `json:"capacity" gorm:"default:0;check:capacity >= 0"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type Artist struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:255;index"`
	Country   string    `json:"country" gorm:"size:2"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (e *Edition) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (s *Stage) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (a *Artist) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Contains reports whether day falls within the edition, bounds inclusive
func (e *Edition) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(e.StartDate)) && !d.After(DateOf(e.EndDate))
}

// Serves reports whether slots of the given edition may be placed on s
func (s *Stage) Serves(editionID uuid.UUID) bool {
	return s.EditionID == nil || *s.EditionID == editionID
}

// DaysBetween returns the whole-day offset from the start of e to the start of other
func (e *Edition) DaysBetween(other *Edition) int {
	return int(DateOf(other.StartDate).Sub(DateOf(e.StartDate)).Hours() / 24)
}

// DateOf truncates t to its calendar date at UTC midnight. Slot days and
// edition bounds are compared as dates, never as instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func (Edition) TableName() string {
	return "festival_editions"
}

func (Stage) TableName() string {
	return "stages"
}

func (Artist) TableName() string {
	return "artists"
}
