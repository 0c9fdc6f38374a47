package purchases

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrProductInactive       = errors.New("product inactive")
	ErrEventClosed           = errors.New("event not open for booking")
	ErrValidation            = errors.New("validation error")
	ErrProcessorUnavailable  = errors.New("payment processor unavailable")
	ErrSignatureInvalid      = errors.New("signature invalid")
	ErrMalformedEvent        = errors.New("malformed event")
)
