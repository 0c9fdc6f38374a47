package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
)

// memStore mimics the repository's conditional updates under one mutex.
type memStore struct {
	mu       sync.Mutex
	events   map[int64]*purchases.Event
	products map[int64]*purchases.Product
	intents  map[string]*purchases.Intent
	nextID   int64
	cancels  []string
	attached map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[int64]*purchases.Event{},
		products: map[int64]*purchases.Product{},
		intents:  map[string]*purchases.Intent{},
		attached: map[string]string{},
	}
}

func (m *memStore) GetEvent(_ context.Context, id int64) (purchases.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return purchases.Event{}, fmt.Errorf("event %d: %w", id, purchases.ErrNotFound)
	}
	return *ev, nil
}

func (m *memStore) GetProducts(_ context.Context, ids []int64) (map[int64]purchases.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]purchases.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (m *memStore) CreateIntent(_ context.Context, in *purchases.Intent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch in.Kind {
	case purchases.KindBooking:
		ev := m.events[in.Booking.EventID]
		if ev == nil || ev.Status != purchases.EventScheduled || ev.CurrentBookings+in.Booking.Seats > ev.MaxCapacity {
			return purchases.ErrCapacityExceeded
		}
		ev.CurrentBookings += in.Booking.Seats
	case purchases.KindOrder:
		for _, it := range in.Order.Items {
			p := m.products[it.ProductID]
			if it.Reserved && (p.Inventory == nil || *p.Inventory < it.Qty) {
				return purchases.ErrInsufficientInventory
			}
		}
		for _, it := range in.Order.Items {
			if it.Reserved {
				*m.products[it.ProductID].Inventory -= it.Qty
			}
		}
	}
	m.nextID++
	in.ID = m.nextID
	in.PaymentStatus = purchases.PaymentPending
	in.Status = purchases.StatusPending
	cp := *in
	m.intents[in.CorrelationKey] = &cp
	return nil
}

func (m *memStore) AttachSession(_ context.Context, key, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[key]; !ok {
		return purchases.ErrNotFound
	}
	m.attached[key] = sessionID
	return nil
}

func (m *memStore) CancelIntent(_ context.Context, key, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, key)
	in, ok := m.intents[key]
	if !ok {
		return false, purchases.ErrNotFound
	}
	if in.PaymentStatus != purchases.PaymentPending || in.Status != purchases.StatusPending {
		return false, nil
	}
	switch in.Kind {
	case purchases.KindBooking:
		m.events[in.Booking.EventID].CurrentBookings -= in.Booking.Seats
	case purchases.KindOrder:
		for _, it := range in.Order.Items {
			if it.Reserved {
				*m.products[it.ProductID].Inventory += it.Qty
			}
		}
	}
	in.Status = purchases.StatusCancelled
	return true, nil
}

func (m *memStore) intent(key string) purchases.Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.intents[key]
}

func (m *memStore) committed(eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID].CurrentBookings
}

type fakeProvider struct {
	mu   sync.Mutex
	reqs []SessionRequest
	err  error
}

func (p *fakeProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return Session{}, p.err
	}
	id := fmt.Sprintf("cs_test_%d", len(p.reqs))
	return Session{ID: id, URL: "https://checkout.example.com/pay/" + id}, nil
}

func (p *fakeProvider) last() SessionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[len(p.reqs)-1]
}

var errProcessorDown = errors.New("connection refused")
