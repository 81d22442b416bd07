package domain

// Vote is a per-bar directional opinion in {-1, 0, +1}.
// The composite signal produced by aggregation uses the same type.
type Vote int

// Vote values
const (
	VoteSell    Vote = -1
	VoteNeutral Vote = 0
	VoteBuy     Vote = 1
)

// IsValid reports whether v is one of the three allowed votes.
func (v Vote) IsValid() bool {
	return v == VoteSell || v == VoteNeutral || v == VoteBuy
}

func (v Vote) String() string {
	switch v {
	case VoteSell:
		return "sell"
	case VoteNeutral:
		return "neutral"
	case VoteBuy:
		return "buy"
	default:
		return "invalid"
	}
}

// Direction of an open position: +1 long, -1 short.
type Direction int

// Direction values
const (
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "none"
	}
}

// DirectionFromVote maps a non-neutral vote to a direction.
// Returns false for a neutral or invalid vote.
func DirectionFromVote(v Vote) (Direction, bool) {
	switch v {
	case VoteBuy:
		return DirectionLong, true
	case VoteSell:
		return DirectionShort, true
	default:
		return 0, false
	}
}

// Opposes reports whether v is the reversal signal for d.
func (d Direction) Opposes(v Vote) bool {
	return v != VoteNeutral && int(v) == -int(d)
}
