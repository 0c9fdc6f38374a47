package purchases

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys embedded in the processor session and read back from its events.
const (
	MetaType           = "type"
	MetaCorrelationKey = "correlation_key"
	MetaBookingID      = "booking_id"
	MetaEventID        = "event_id"
	MetaOrderID        = "order_id"
	MetaOrderNumber    = "order_number"
	MetaProduct        = "product"
	MetaTrackID        = "track_id"
	MetaTrackTitle     = "track_title"
	MetaCustomerName   = "customer_name"
	MetaCustomerEmail  = "customer_email"
	MetaSessionID      = "session_id"
)

// Metadata is the business context carried through the payment round trip.
// Values coming back from the processor are untrusted.
type Metadata struct {
	Kind           Kind
	CorrelationKey string
	IntentID       int64
	EventID        int64
	OrderNumber    string
	Product        string
	TrackID        int
	TrackTitle     string
	CustomerName   string
	CustomerEmail  string
	SessionID      string
}

// MetadataFor builds the metadata for a freshly persisted intent.
func MetadataFor(in Intent, product string) Metadata {
	m := Metadata{
		Kind:           in.Kind,
		CorrelationKey: in.CorrelationKey,
		IntentID:       in.ID,
		CustomerName:   in.Customer.Name,
		CustomerEmail:  in.Customer.Email,
		SessionID:      in.ClientSessionID,
		Product:        product,
	}
	switch in.Kind {
	case KindBooking:
		m.EventID = in.Booking.EventID
	case KindOrder:
		m.OrderNumber = in.Order.OrderNumber
	case KindAlbum, KindTrack:
		m.TrackID = in.Music.TrackID
		m.TrackTitle = in.Music.TrackTitle
	}
	return m
}

func (m Metadata) Map() map[string]string {
	out := map[string]string{
		MetaType:           string(m.Kind),
		MetaCorrelationKey: m.CorrelationKey,
		MetaCustomerEmail:  m.CustomerEmail,
	}
	if m.CustomerName != "" {
		out[MetaCustomerName] = m.CustomerName
	}
	if m.SessionID != "" {
		out[MetaSessionID] = m.SessionID
	}
	switch m.Kind {
	case KindBooking:
		out[MetaBookingID] = strconv.FormatInt(m.IntentID, 10)
		out[MetaEventID] = strconv.FormatInt(m.EventID, 10)
	case KindOrder:
		out[MetaOrderID] = strconv.FormatInt(m.IntentID, 10)
		out[MetaOrderNumber] = m.OrderNumber
	case KindAlbum:
		out[MetaProduct] = m.Product
	case KindTrack:
		out[MetaTrackID] = strconv.Itoa(m.TrackID)
		out[MetaTrackTitle] = m.TrackTitle
	}
	return out
}

// ParseMetadata validates the shape of metadata read back from a processor event.
// It does not prove the referenced records exist; callers re-check against the store.
func ParseMetadata(raw map[string]string) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 {
		return m, fmt.Errorf("%w: metadata missing", ErrMalformedEvent)
	}
	m.Kind = Kind(strings.TrimSpace(raw[MetaType]))
	if !m.Kind.Valid() {
		return m, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, raw[MetaType])
	}
	m.CorrelationKey = strings.TrimSpace(raw[MetaCorrelationKey])
	if m.CorrelationKey == "" {
		return m, fmt.Errorf("%w: correlation key missing", ErrMalformedEvent)
	}
	m.CustomerName = raw[MetaCustomerName]
	m.CustomerEmail = raw[MetaCustomerEmail]
	m.SessionID = raw[MetaSessionID]

	var err error
	switch m.Kind {
	case KindBooking:
		if m.IntentID, err = parseID(raw, MetaBookingID); err != nil {
			return m, err
		}
		if m.EventID, err = parseID(raw, MetaEventID); err != nil {
			return m, err
		}
	case KindOrder:
		if m.IntentID, err = parseID(raw, MetaOrderID); err != nil {
			return m, err
		}
		m.OrderNumber = raw[MetaOrderNumber]
	case KindAlbum:
		m.Product = raw[MetaProduct]
	case KindTrack:
		id, err := parseID(raw, MetaTrackID)
		if err != nil {
			return m, err
		}
		m.TrackID = int(id)
		m.TrackTitle = raw[MetaTrackTitle]
	}
	return m, nil
}

func parseID(raw map[string]string, key string) (int64, error) {
	v := strings.TrimSpace(raw[key])
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformedEvent, key, v)
	}
	return id, nil
}

// Matches reports whether the metadata refers to the stored intent.
func (m Metadata) Matches(in Intent) error {
	if m.Kind != in.Kind {
		return fmt.Errorf("%w: type %s does not match intent kind %s", ErrMalformedEvent, m.Kind, in.Kind)
	}
	switch in.Kind {
	case KindBooking:
		if m.IntentID != in.ID || in.Booking == nil || m.EventID != in.Booking.EventID {
			return fmt.Errorf("%w: booking ids do not match intent %d", ErrMalformedEvent, in.ID)
		}
	case KindOrder:
		if m.IntentID != in.ID {
			return fmt.Errorf("%w: order id does not match intent %d", ErrMalformedEvent, in.ID)
		}
	case KindTrack:
		if in.Music == nil || m.TrackID != in.Music.TrackID {
			return fmt.Errorf("%w: track id does not match intent %d", ErrMalformedEvent, in.ID)
		}
	}
	return nil
}
