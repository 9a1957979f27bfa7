package checkout

import "errors"

var (
	ErrEmptyCart               = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition       = errors.New("illegal transition of checkout state")
	ErrAcknowledgementRequired = errors.New("checkout is blocked until the issues are acknowledged or corrected")
	ErrStaleValidation         = errors.New("cart changed while it was being validated")
	ErrNotReady                = errors.New("checkout has not been validated for the current cart")
	ErrOrderRejected           = errors.New("order rejected by backend")
)
