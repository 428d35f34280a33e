package schedule

import (
	"fmt"

	"festival/internal/shared/apperror"

	"github.com/google/uuid"
)

// Conflict summarizes an existing slot that collides with a candidate
type Conflict struct {
	SlotID uuid.UUID `json:"slot_id"`
	Start  TimeOfDay `json:"start"`
	End    TimeOfDay `json:"end"`
	Artist string    `json:"artist"`
}

// ConflictError lists every slot the candidate overlaps, not just the first
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot overlaps %d existing slot(s) on this stage and day", len(e.Conflicts))
}

func (e *ConflictError) Kind() apperror.Kind { return apperror.KindConflict }

func (e *ConflictError) Details() interface{} {
	return map[string]interface{}{"conflicts": e.Conflicts}
}
