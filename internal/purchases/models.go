package purchases

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindBooking Kind = "booking"
	KindOrder   Kind = "order"
	KindAlbum   Kind = "album"
	KindTrack   Kind = "track"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBooking, KindOrder, KindAlbum, KindTrack:
		return true
	}
	return false
}

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

type Event struct {
	ID              int64
	Title           string
	StartTime       time.Time
	EndTime         time.Time
	PriceCents      int
	MaxCapacity     int
	CurrentBookings int
	Status          EventStatus
}

// SeatsLeft is the uncommitted capacity as of the last read.
func (e Event) SeatsLeft() int {
	if left := e.MaxCapacity - e.CurrentBookings; left > 0 {
		return left
	}
	return 0
}

type Product struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int
	// Inventory is nil for untracked stock.
	Inventory *int
	IsDigital bool
	IsActive  bool
}

// TracksInventory reports whether orders for this product consume stock.
func (p Product) TracksInventory() bool {
	return !p.IsDigital && p.Inventory != nil
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type BookingDetail struct {
	EventID         int64
	Seats           int
	SpecialRequests string
}

type LineItem struct {
	ProductID int64
	// ProductName and UnitPriceCents are snapshots taken when the order was placed.
	ProductName    string
	UnitPriceCents int
	Qty            int
	TotalCents     int
	Reserved       bool
}

type OrderDetail struct {
	OrderNumber     string
	ShippingAddress string
	Items           []LineItem
}

// MusicDetail covers album and track purchases. TrackID is zero for the album.
type MusicDetail struct {
	TrackID    int
	TrackTitle string
}

// Stamp is the last engagement seen for the buyer's client session. Written once.
type Stamp struct {
	TrackID         int
	TrackTitle      string
	ClientSessionID string
	StampedAt       time.Time
}

// Intent is the durable record of a promised purchase. Exactly one of Booking,
// Order or Music is set, matching Kind.
type Intent struct {
	ID                 int64
	CorrelationKey     string
	Kind               Kind
	PaymentStatus      PaymentStatus
	Status             Status
	Customer           Customer
	TotalCents         int
	Currency           string
	ProcessorSessionID string
	PaymentRef         string
	ClientSessionID    string
	CreatedAt          time.Time
	PaidAt             *time.Time

	Booking     *BookingDetail
	Order       *OrderDetail
	Music       *MusicDetail
	Attribution *Stamp
}

func (in Intent) Validate() error {
	if in.CorrelationKey == "" {
		return fmt.Errorf("%w: correlation key required", ErrValidation)
	}
	if in.TotalCents < 0 {
		return fmt.Errorf("%w: negative total", ErrValidation)
	}
	switch in.Kind {
	case KindBooking:
		if in.Booking == nil || in.Order != nil || in.Music != nil {
			return fmt.Errorf("%w: booking intent needs booking detail only", ErrValidation)
		}
		if in.Booking.Seats <= 0 {
			return fmt.Errorf("%w: seats must be positive", ErrValidation)
		}
	case KindOrder:
		if in.Order == nil || in.Booking != nil || in.Music != nil {
			return fmt.Errorf("%w: order intent needs order detail only", ErrValidation)
		}
		if len(in.Order.Items) == 0 {
			return fmt.Errorf("%w: order has no items", ErrValidation)
		}
		for _, it := range in.Order.Items {
			if it.Qty <= 0 {
				return fmt.Errorf("%w: invalid qty for product %d", ErrValidation, it.ProductID)
			}
		}
	case KindAlbum, KindTrack:
		if in.Music == nil || in.Booking != nil || in.Order != nil {
			return fmt.Errorf("%w: music intent needs music detail only", ErrValidation)
		}
		if in.Kind == KindTrack && in.Music.TrackID <= 0 {
			return fmt.Errorf("%w: track id required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, in.Kind)
	}
	return nil
}

// MarkPaidResult describes what a payment confirmation did to the stored intent.
type MarkPaidResult struct {
	Intent Intent
	// Applied is false when the intent was already paid; no side effects should run.
	Applied bool
	// WasCancelled is set when payment arrived after the reservation had been released.
	WasCancelled bool
	// Oversold is set when the released capacity could not be taken back.
	Oversold bool
}
