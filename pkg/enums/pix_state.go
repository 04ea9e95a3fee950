package enums

// PixState is the lifecycle of a PIX payment inside one checkout.
type PixState string

const (
	PixStateNotRequested PixState = "NotRequested"
	PixStateRequesting   PixState = "Requesting"
	PixStateReady        PixState = "Ready"
	PixStateFailed       PixState = "Failed"
	PixStateExpired      PixState = "Expired"
)

var pixTransitions = map[PixState][]PixState{
	PixStateNotRequested: {PixStateRequesting},
	PixStateRequesting:   {PixStateReady, PixStateFailed},
	PixStateFailed:       {PixStateRequesting},
	PixStateReady:        {PixStateExpired},
}

// String implements fmt.Stringer.
func (s PixState) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s PixState) CanTransitionTo(next PixState) bool {
	for _, candidate := range pixTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}
