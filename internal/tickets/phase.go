package tickets

import (
	"time"

	"festival/internal/editions"
)

const (
	DefaultPhaseDays         = 14
	DefaultPhaseRemainingPct = 0.10
)

// PhaseRules decide when a ticket type is due for its next phase
type PhaseRules struct {
	DaysSinceStart int     `json:"days_since_start"`
	RemainingPct   float64 `json:"remaining_pct"`
}

func DefaultPhaseRules() PhaseRules {
	return PhaseRules{DaysSinceStart: DefaultPhaseDays, RemainingPct: DefaultPhaseRemainingPct}
}

// Due reports whether tt satisfies either rule at ref. Elapsed days are
// counted between calendar dates in loc.
func (r PhaseRules) Due(tt *TicketType, ref time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	if tt.SaleStart != nil {
		refDay := editions.DateOf(ref.In(loc))
		startDay := editions.DateOf(tt.SaleStart.In(loc))
		if int(refDay.Sub(startDay).Hours()/24) >= r.DaysSinceStart {
			return true
		}
	}
	if tt.QuotaTotal > 0 {
		ratio := float64(tt.QuotaRemaining()) / float64(tt.QuotaTotal)
		if ratio <= r.RemainingPct {
			return true
		}
	}
	return false
}

// NextPhaseIfDue returns the single next phase when the rules apply. A
// ticket type never skips a phase and never moves backwards.
func NextPhaseIfDue(tt *TicketType, ref time.Time, rules PhaseRules, loc *time.Location) (Phase, bool) {
	next, ok := tt.Phase.Next()
	if !ok {
		return "", false
	}
	if !rules.Due(tt, ref, loc) {
		return "", false
	}
	return next, true
}

// PhaseTransition records one applied phase step
type PhaseTransition struct {
	TicketTypeID string `json:"id"`
	EditionID    string `json:"edition"`
	Code         string `json:"code"`
	From         Phase  `json:"from"`
	To           Phase  `json:"to"`
}

func newTransition(tt *TicketType, from Phase) *PhaseTransition {
	return &PhaseTransition{
		TicketTypeID: tt.ID.String(),
		EditionID:    tt.EditionID.String(),
		Code:         tt.Code,
		From:         from,
		To:           tt.Phase,
	}
}
