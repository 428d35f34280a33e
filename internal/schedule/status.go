package schedule

type SlotStatus string

const (
	StatusTentative SlotStatus = "tentative"
	StatusConfirmed SlotStatus = "confirmed"
	StatusCanceled  SlotStatus = "canceled"
)

func (s SlotStatus) IsValid() bool {
	switch s {
	case StatusTentative, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

func (s SlotStatus) String() string {
	return string(s)
}

// IsActive reports whether slots in this status take part in conflict checks
func (s SlotStatus) IsActive() bool {
	return s != StatusCanceled
}

// CanTransitionTo allows tentative -> confirmed -> canceled, plus tentative -> canceled.
// Canceled is terminal.
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusTentative:
		return next == StatusConfirmed || next == StatusCanceled
	case StatusConfirmed:
		return next == StatusCanceled
	}
	return false
}
