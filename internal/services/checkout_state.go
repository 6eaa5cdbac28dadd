package services

// CheckoutState is the lifecycle of a checkout session.
type CheckoutState string

const (
	StateIdle       CheckoutState = "idle"
	StateCollecting CheckoutState = "collecting_payment_method"
	StateSubmitting CheckoutState = "submitting"
	StateSucceeded  CheckoutState = "succeeded"
	StateFailed     CheckoutState = "failed"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateIdle:       {StateCollecting},
	StateCollecting: {StateSubmitting},
	StateSubmitting: {StateSucceeded, StateFailed},
	StateFailed:     {StateSubmitting},
}

func (s CheckoutState) IsTerminal() bool {
	return s == StateSucceeded
}

// CanTransitionTo reports whether next is a legal successor of s. A failed
// session may be resubmitted; a succeeded one is final.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod identifies how the shopper pays.
type PaymentMethod string

const (
	MethodCard      PaymentMethod = "card"
	MethodApplePay  PaymentMethod = "apple_pay"
	MethodGooglePay PaymentMethod = "google_pay"
)
