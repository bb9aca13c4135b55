package domain

import "fmt"

// The enums below encode as their names in JSON and TOML.

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, ok := ParseState(string(b))
	if !ok {
		return fmt.Errorf("%w: state %q", ErrWrongValue, b)
	}
	*s = v
	return nil
}

func (s PositionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *PositionState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "active":
		*s = PositionActive
	case "inactive":
		*s = PositionInactive
	case "child":
		*s = PositionChild
	default:
		return fmt.Errorf("%w: position state %q", ErrWrongValue, b)
	}
	return nil
}

func (p CapPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *CapPolicy) UnmarshalText(b []byte) error {
	v, ok := ParseCapPolicy(string(b))
	if !ok {
		return fmt.Errorf("%w: cap policy %q", ErrWrongValue, b)
	}
	*p = v
	return nil
}

func (p ForfeitPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *ForfeitPolicy) UnmarshalText(b []byte) error {
	v, ok := ParseForfeitPolicy(string(b))
	if !ok {
		return fmt.Errorf("%w: forfeit policy %q", ErrWrongValue, b)
	}
	*p = v
	return nil
}

func (s ScoreSource) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ScoreSource) UnmarshalText(b []byte) error {
	v, ok := ParseScoreSource(string(b))
	if !ok {
		return fmt.Errorf("%w: score source %q", ErrWrongValue, b)
	}
	*s = v
	return nil
}
