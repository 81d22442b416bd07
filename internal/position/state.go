package position

// State of the position machine.
type State int

// Machine states
const (
	StateFlat State = iota
	StateInPosition
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "flat"
	case StateInPosition:
		return "in_position"
	default:
		return "unknown"
	}
}
