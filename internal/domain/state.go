package domain

// State is the on/off switch shared by pools and bond configs.
type State uint8

const (
	StateInactive State = 0
	StateActive   State = 1
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// ParseState accepts "active" or "inactive".
func ParseState(s string) (State, bool) {
	switch s {
	case "active":
		return StateActive, true
	case "inactive":
		return StateInactive, true
	}
	return StateInactive, false
}
