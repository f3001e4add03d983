package pos

type State int

const (
	StateIdle State = iota
	StateReviewing
	StateAwaitingPayment
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReviewing:
		return "reviewing"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	}
	return "unknown"
}

// A rejected submission goes Submitting -> AwaitingPayment; there is no
// resting Rejected state.
var validNext = map[State]map[State]bool{
	StateIdle:            {StateReviewing: true},
	StateReviewing:       {StateIdle: true, StateAwaitingPayment: true},
	StateAwaitingPayment: {StateReviewing: true, StateIdle: true, StateSubmitting: true},
	StateSubmitting:      {StateSucceeded: true, StateAwaitingPayment: true},
	StateSucceeded:       {StateIdle: true},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}
