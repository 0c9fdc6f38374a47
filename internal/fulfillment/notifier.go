// Package fulfillment runs the side effects of a confirmed purchase: customer
// emails, owner alerts and mailing-list updates. Every step is best effort and
// independent of the others.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
)

// Purchase is a freshly paid intent plus the records its notifications mention.
type Purchase struct {
	Intent purchases.Intent
	// Event is set for bookings when it could be loaded.
	Event *purchases.Event
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type MailingList interface {
	Upsert(ctx context.Context, sub Subscriber) error
}

type OwnerAlerts interface {
	Alert(ctx context.Context, alert purchases.OwnerAlertPayload) error
}

// Links turns a catalog object key into a URL the buyer can download from.
type Links interface {
	URL(ctx context.Context, objectKey string) (string, error)
}

type Notifier struct {
	Mailer Mailer
	// List and Alerts may be nil when the integration is not configured.
	List      MailingList
	Alerts    OwnerAlerts
	Links     Links
	Music     *catalog.Music
	SegmentID string
	Log       *slog.Logger
}

// Dispatch runs every notification for the purchase kind. The returned error
// joins all step failures; a failed step never prevents the next one.
func (n *Notifier) Dispatch(ctx context.Context, p Purchase) error {
	in := p.Intent
	log := n.logger().With("correlation_key", in.CorrelationKey, "kind", in.Kind)

	var steps []step
	switch in.Kind {
	case purchases.KindBooking:
		steps = []step{
			{"booking_confirmation", n.bookingConfirmation},
			{"owner_alert", n.bookingAlert},
			{"mailing_list", n.subscribe},
		}
	case purchases.KindOrder:
		// order confirmation is the status change itself
		log.Info("order paid", "order_number", in.Order.OrderNumber, "total_cents", in.TotalCents)
		return nil
	case purchases.KindAlbum:
		steps = []step{
			{"album_download", n.albumDownload},
			{"owner_alert", n.musicAlert},
		}
	case purchases.KindTrack:
		steps = []step{
			{"track_download", n.trackDownload},
			{"owner_alert", n.musicAlert},
		}
	default:
		return fmt.Errorf("dispatch: unknown kind %q", in.Kind)
	}

	var errs []error
	for _, s := range steps {
		if err := s.run(ctx, p); err != nil {
			log.Error("fulfillment step failed", "step", s.name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		log.Debug("fulfillment step done", "step", s.name)
	}
	return errors.Join(errs...)
}

type step struct {
	name string
	run  func(context.Context, Purchase) error
}

var errNoRecipient = errors.New("no customer email")

func (n *Notifier) bookingConfirmation(ctx context.Context, p Purchase) error {
	if p.Intent.Customer.Email == "" {
		return errNoRecipient
	}
	msg, err := bookingConfirmationMessage(p)
	if err != nil {
		return err
	}
	return n.Mailer.Send(ctx, msg)
}

func (n *Notifier) bookingAlert(ctx context.Context, p Purchase) error {
	if n.Alerts == nil {
		return nil
	}
	in := p.Intent
	return n.Alerts.Alert(ctx, purchases.OwnerAlertPayload{
		Kind:           in.Kind,
		CorrelationKey: in.CorrelationKey,
		Title:          "New Booking: " + eventTitle(p.Event),
		Content: fmt.Sprintf("%s (%s) booked %d spot(s) for %s. Total: %s",
			in.Customer.Name, in.Customer.Email, in.Booking.Seats, eventDate(p.Event),
			FormatMoney(in.TotalCents, in.Currency)),
	})
}

func (n *Notifier) subscribe(ctx context.Context, p Purchase) error {
	if n.List == nil {
		return nil
	}
	in := p.Intent
	if in.Customer.Email == "" {
		return errNoRecipient
	}
	first, last := SplitName(in.Customer.Name)
	sub := Subscriber{
		Email:     in.Customer.Email,
		FirstName: first,
		LastName:  last,
		CustomFields: map[string]string{
			"last_booking_event":  eventTitle(p.Event),
			"last_booking_date":   eventDate(p.Event),
			"last_booking_amount": FormatMoney(in.TotalCents, in.Currency),
		},
	}
	if n.SegmentID != "" {
		sub.SegmentIDs = []string{n.SegmentID}
	}
	return n.List.Upsert(ctx, sub)
}

func (n *Notifier) albumDownload(ctx context.Context, p Purchase) error {
	if p.Intent.Customer.Email == "" {
		return errNoRecipient
	}
	links := make([]downloadLink, 0, len(n.Music.Tracks))
	for _, t := range n.Music.Tracks {
		u, err := n.Links.URL(ctx, t.ObjectKey)
		if err != nil {
			return fmt.Errorf("link for track %d: %w", t.ID, err)
		}
		links = append(links, downloadLink{Number: t.ID, Title: t.Title, URL: u})
	}
	msg, err := albumDownloadMessage(p, n.Music.Album, links)
	if err != nil {
		return err
	}
	return n.Mailer.Send(ctx, msg)
}

func (n *Notifier) trackDownload(ctx context.Context, p Purchase) error {
	if p.Intent.Customer.Email == "" {
		return errNoRecipient
	}
	t, err := n.Music.Track(p.Intent.Music.TrackID)
	if err != nil {
		return err
	}
	u, err := n.Links.URL(ctx, t.ObjectKey)
	if err != nil {
		return fmt.Errorf("link for track %d: %w", t.ID, err)
	}
	msg, err := trackDownloadMessage(p, downloadLink{Number: t.ID, Title: t.Title, URL: u})
	if err != nil {
		return err
	}
	return n.Mailer.Send(ctx, msg)
}

func (n *Notifier) musicAlert(ctx context.Context, p Purchase) error {
	if n.Alerts == nil {
		return nil
	}
	in := p.Intent
	alert := purchases.OwnerAlertPayload{Kind: in.Kind, CorrelationKey: in.CorrelationKey}
	price := FormatMoney(in.TotalCents, in.Currency)
	if in.Kind == purchases.KindAlbum {
		alert.Title = "Album Purchase: " + n.Music.Album.Slug
		alert.Content = fmt.Sprintf("%s (%s) purchased the %s for %s", in.Customer.Name, in.Customer.Email, n.Music.Album.Name, price)
	} else {
		alert.Title = "Track Purchase: " + in.Music.TrackTitle
		alert.Content = fmt.Sprintf("%s (%s) purchased %q for %s", in.Customer.Name, in.Customer.Email, in.Music.TrackTitle, price)
	}
	return n.Alerts.Alert(ctx, alert)
}

func (n *Notifier) logger() *slog.Logger {
	if n.Log == nil {
		return slog.Default()
	}
	return n.Log
}

func eventTitle(ev *purchases.Event) string {
	if ev == nil || ev.Title == "" {
		return "Event"
	}
	return ev.Title
}

func eventDate(ev *purchases.Event) string {
	if ev == nil || ev.StartTime.IsZero() {
		return "the scheduled date"
	}
	return ev.StartTime.Format("Monday, January 2, 2006")
}

// FormatMoney renders minor units, e.g. 2500 usd -> $25.00.
func FormatMoney(cents int, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if currency == "" || strings.EqualFold(currency, "usd") {
		return sign + "$" + amount
	}
	return sign + amount + " " + strings.ToUpper(currency)
}

// SplitName splits on the first space: "Mary Ann Smith" -> "Mary", "Ann Smith".
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i >= 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, ""
}
