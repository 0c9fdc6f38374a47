// Package checkout turns a purchase request into a persisted intent and a
// hosted payment session. Capacity is committed before the processor is called
// and given back if the processor cannot open a session.
package checkout

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/google/uuid"
)

// Store is the part of the purchase repository the builder needs.
type Store interface {
	GetEvent(ctx context.Context, id int64) (purchases.Event, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]purchases.Product, error)
	CreateIntent(ctx context.Context, in *purchases.Intent) error
	AttachSession(ctx context.Context, correlationKey, sessionID string) error
	CancelIntent(ctx context.Context, correlationKey, reason string) (bool, error)
}

type Service struct {
	Store    Store
	Provider Provider
	Music    *catalog.Music
	Log      *slog.Logger

	BaseURL    string
	Currency   string
	SessionTTL time.Duration

	now func() time.Time
}

func NewService(store Store, provider Provider, music *catalog.Music, log *slog.Logger, baseURL, currency string, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		Store:      store,
		Provider:   provider,
		Music:      music,
		Log:        log,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Currency:   currency,
		SessionTTL: ttl,
		now:        time.Now,
	}
}

type Result struct {
	RedirectURL        string
	ProcessorSessionID string
	CorrelationKey     string
	IntentID           int64
	OrderNumber        string
}

type BookingRequest struct {
	EventID         int64
	Seats           int
	Customer        purchases.Customer
	SpecialRequests string
	Origin          string
}

type OrderLine struct {
	ProductID int64
	Qty       int
}

type OrderRequest struct {
	Items           []OrderLine
	Customer        purchases.Customer
	ShippingAddress string
	Origin          string
}

type AlbumRequest struct {
	CustomerEmail   string
	ClientSessionID string
	Origin          string
}

type TrackRequest struct {
	TrackID         int
	CustomerEmail   string
	ClientSessionID string
	Origin          string
}

func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (Result, error) {
	if req.Seats <= 0 {
		return Result{}, fmt.Errorf("%w: seats must be at least 1", purchases.ErrValidation)
	}
	if err := requireCustomer(req.Customer); err != nil {
		return Result{}, err
	}

	ev, err := s.Store.GetEvent(ctx, req.EventID)
	if err != nil {
		return Result{}, err
	}
	if ev.Status != purchases.EventScheduled {
		return Result{}, fmt.Errorf("event %d is %s: %w", ev.ID, ev.Status, purchases.ErrEventClosed)
	}
	// Early rejection only; the conditional update in CreateIntent is authoritative.
	if left := ev.SeatsLeft(); req.Seats > left {
		return Result{}, fmt.Errorf("only %d spots available: %w", left, purchases.ErrCapacityExceeded)
	}

	in := &purchases.Intent{
		CorrelationKey: uuid.NewString(),
		Kind:           purchases.KindBooking,
		Customer:       req.Customer,
		TotalCents:     ev.PriceCents * req.Seats,
		Currency:       s.Currency,
		Booking: &purchases.BookingDetail{
			EventID:         ev.ID,
			Seats:           req.Seats,
			SpecialRequests: req.SpecialRequests,
		},
	}
	items := []LineItem{{
		Name:            ev.Title,
		Description:     fmt.Sprintf("%d spot(s) for %s", req.Seats, ev.StartTime.Format("Jan 2, 2006")),
		UnitAmountCents: int64(ev.PriceCents),
		Quantity:        int64(req.Seats),
	}}
	return s.open(ctx, in, "", items, bookingURLs(s.origin(req.Origin)))
}

func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (Result, error) {
	if err := requireCustomer(req.Customer); err != nil {
		return Result{}, err
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return Result{}, err
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Store.GetProducts(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	var (
		total     int
		items     = make([]purchases.LineItem, 0, len(lines))
		lineItems = make([]LineItem, 0, len(lines))
	)
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return Result{}, fmt.Errorf("product %d: %w", l.ProductID, purchases.ErrNotFound)
		}
		if !p.IsActive {
			return Result{}, fmt.Errorf("product %s: %w", p.Name, purchases.ErrProductInactive)
		}
		if p.TracksInventory() && *p.Inventory < l.Qty {
			return Result{}, fmt.Errorf("not enough inventory for %s: %w", p.Name, purchases.ErrInsufficientInventory)
		}
		items = append(items, purchases.LineItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			UnitPriceCents: p.PriceCents,
			Qty:            l.Qty,
			TotalCents:     p.PriceCents * l.Qty,
			Reserved:       p.TracksInventory(),
		})
		lineItems = append(lineItems, LineItem{
			Name:            p.Name,
			Description:     p.Description,
			UnitAmountCents: int64(p.PriceCents),
			Quantity:        int64(l.Qty),
		})
		total += p.PriceCents * l.Qty
	}

	in := &purchases.Intent{
		CorrelationKey: uuid.NewString(),
		Kind:           purchases.KindOrder,
		Customer:       req.Customer,
		TotalCents:     total,
		Currency:       s.Currency,
		Order: &purchases.OrderDetail{
			OrderNumber:     NewOrderNumber(s.now()),
			ShippingAddress: req.ShippingAddress,
			Items:           items,
		},
	}
	return s.open(ctx, in, "", lineItems, orderURLs(s.origin(req.Origin)))
}

func (s *Service) CreateAlbum(ctx context.Context, req AlbumRequest) (Result, error) {
	album := s.Music.Album
	in := &purchases.Intent{
		CorrelationKey:  uuid.NewString(),
		Kind:            purchases.KindAlbum,
		Customer:        purchases.Customer{Email: strings.TrimSpace(req.CustomerEmail)},
		TotalCents:      album.PriceCents,
		Currency:        s.Currency,
		ClientSessionID: req.ClientSessionID,
		Music:           &purchases.MusicDetail{TrackTitle: album.Name},
	}
	items := []LineItem{{
		Name:            album.Name,
		Description:     album.Description,
		UnitAmountCents: int64(album.PriceCents),
		Quantity:        1,
	}}
	return s.open(ctx, in, album.Slug, items, albumURLs(s.origin(req.Origin), album.Slug))
}

func (s *Service) CreateTrack(ctx context.Context, req TrackRequest) (Result, error) {
	track, err := s.Music.Track(req.TrackID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", purchases.ErrNotFound, err)
	}
	album := s.Music.Album
	in := &purchases.Intent{
		CorrelationKey:  uuid.NewString(),
		Kind:            purchases.KindTrack,
		Customer:        purchases.Customer{Email: strings.TrimSpace(req.CustomerEmail)},
		TotalCents:      s.Music.TrackPriceCents,
		Currency:        s.Currency,
		ClientSessionID: req.ClientSessionID,
		Music:           &purchases.MusicDetail{TrackID: track.ID, TrackTitle: track.Title},
	}
	items := []LineItem{{
		Name:            track.Title + " - " + album.Name,
		Description:     fmt.Sprintf("Track %02d from %s", track.ID, album.Name),
		UnitAmountCents: int64(s.Music.TrackPriceCents),
		Quantity:        1,
	}}
	return s.open(ctx, in, "", items, trackURLs(s.origin(req.Origin), album.Slug, track.ID))
}

// open persists the intent (committing capacity), then asks the processor for a
// session. If the processor fails the reservation is released before returning.
func (s *Service) open(ctx context.Context, in *purchases.Intent, product string, items []LineItem, urls returnURLs) (Result, error) {
	if err := s.Store.CreateIntent(ctx, in); err != nil {
		return Result{}, err
	}
	log := s.Log.With("correlation_key", in.CorrelationKey, "kind", in.Kind, "intent_id", in.ID)

	req := SessionRequest{
		IdempotencyKey: in.CorrelationKey,
		CustomerEmail:  in.Customer.Email,
		Currency:       in.Currency,
		Items:          items,
		SuccessURL:     urls.success,
		CancelURL:      urls.cancel,
		Metadata:       purchases.MetadataFor(*in, product).Map(),
	}
	if s.SessionTTL > 0 {
		req.ExpiresAt = s.now().Add(s.SessionTTL)
	}

	sess, err := s.Provider.CreateSession(ctx, req)
	if err != nil {
		log.Error("checkout session failed, releasing reservation", "err", err)
		s.compensate(ctx, in.CorrelationKey, log)
		return Result{}, fmt.Errorf("%w: %v", purchases.ErrProcessorUnavailable, err)
	}

	if err := s.Store.AttachSession(ctx, in.CorrelationKey, sess.ID); err != nil {
		// payment confirmation fills the session id in, so the checkout can proceed
		log.Warn("attach session failed", "session_id", sess.ID, "err", err)
	}
	log.Info("checkout session created", "session_id", sess.ID, "total_cents", in.TotalCents)

	res := Result{
		RedirectURL:        sess.URL,
		ProcessorSessionID: sess.ID,
		CorrelationKey:     in.CorrelationKey,
		IntentID:           in.ID,
	}
	if in.Order != nil {
		res.OrderNumber = in.Order.OrderNumber
	}
	return res, nil
}

func (s *Service) compensate(ctx context.Context, correlationKey string, log *slog.Logger) {
	// the caller may already be gone; the release must still happen
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	released, err := s.Store.CancelIntent(cctx, correlationKey, "processor_unavailable")
	if err != nil {
		log.Error("release reservation failed", "alert", "reconciliation", "err", err)
		return
	}
	log.Info("reservation released", "released", released)
}

// Release gives back the capacity of an intent whose session expired unpaid.
func (s *Service) Release(ctx context.Context, correlationKey, reason string) (bool, error) {
	return s.Store.CancelIntent(ctx, correlationKey, reason)
}

func requireCustomer(c purchases.Customer) error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: customer name and email required", purchases.ErrValidation)
	}
	return nil
}

// mergeLines folds repeated products into one line so each is reserved once.
// Lines come back in product id order, the order stock rows are locked in.
func mergeLines(in []OrderLine) ([]OrderLine, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: order has no items", purchases.ErrValidation)
	}
	idx := make(map[int64]int, len(in))
	out := make([]OrderLine, 0, len(in))
	for _, l := range in {
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for product %d", purchases.ErrValidation, l.ProductID)
		}
		if i, ok := idx[l.ProductID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b OrderLine) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out, nil
}

// NewOrderNumber returns DP-<unix millis>-<6 uppercase base36 chars>.
func NewOrderNumber(now time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36))
	for len(suffix) < 6 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("DP-%d-%s", now.UnixMilli(), suffix[len(suffix)-6:])
}
