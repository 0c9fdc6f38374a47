package webhook

// Event types the processor routes on.
const (
	TypeSessionCompleted      = "checkout.session.completed"
	TypeSessionAsyncSucceeded = "checkout.session.async_payment_succeeded"
	TypeSessionExpired        = "checkout.session.expired"
)

// Notification is a verified processor event reduced to what the processor needs.
type Notification struct {
	ID       string
	Type     string
	Livemode bool
	// Session is set for checkout.session.* events.
	Session *CheckoutSession
}

type CheckoutSession struct {
	ID            string
	PaymentRef    string
	PaymentStatus string
	CustomerEmail string
	CustomerName  string
	AmountTotal   int64
	Metadata      map[string]string
}

// Paid reports whether funds were captured. Delayed payment methods complete
// the session first and report success in a later event.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "" || s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}
