package domain

type CheckoutState string

const (
	CheckoutStateIdle          CheckoutState = "IDLE"
	CheckoutStateValidating    CheckoutState = "VALIDATING"
	CheckoutStateReadyToSubmit CheckoutState = "READY_TO_SUBMIT"
	CheckoutStateBlocked       CheckoutState = "BLOCKED"
	CheckoutStateSubmitting    CheckoutState = "SUBMITTING"
	CheckoutStateCompleted     CheckoutState = "COMPLETED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:          {CheckoutStateValidating},
	CheckoutStateValidating:    {CheckoutStateReadyToSubmit, CheckoutStateBlocked, CheckoutStateIdle},
	CheckoutStateReadyToSubmit: {CheckoutStateSubmitting, CheckoutStateIdle},
	CheckoutStateBlocked:       {CheckoutStateIdle, CheckoutStateValidating},
	CheckoutStateSubmitting:    {CheckoutStateCompleted, CheckoutStateReadyToSubmit, CheckoutStateIdle},
	CheckoutStateCompleted:     {CheckoutStateIdle},
}

// CanTransitionTo reports whether a single attempt may move from one state to the next.
// BLOCKED -> VALIDATING is only taken for transport failures; line issues go through IDLE.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
