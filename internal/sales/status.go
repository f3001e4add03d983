package sales

type Status string

const (
	StatusCompleted Status = "completed"
	StatusAnnulled  Status = "annulled"
)

// completed -> annulled is the only change a persisted sale ever sees.
var validNext = map[Status]map[Status]bool{
	StatusCompleted: {StatusAnnulled: true},
	StatusAnnulled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
