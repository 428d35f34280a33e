package tickets

// Phase is the pricing tier of a ticket type
type Phase string

const (
	PhaseEarly   Phase = "early"
	PhaseRegular Phase = "regular"
	PhaseLate    Phase = "late"
)

// phaseOrder is the only path a ticket type moves along
var phaseOrder = []Phase{PhaseEarly, PhaseRegular, PhaseLate}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseEarly, PhaseRegular, PhaseLate:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	return string(p)
}

// Next returns the following phase; late is terminal.
func (p Phase) Next() (Phase, bool) {
	for i, candidate := range phaseOrder {
		if candidate == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Before reports whether p comes earlier than other in the progression
func (p Phase) Before(other Phase) bool {
	return p.index() < other.index()
}

func (p Phase) index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// AllPhases lists the phases in progression order
func AllPhases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}
