package fulfillment

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	kafkago "github.com/segmentio/kafka-go"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeList struct {
	subs []Subscriber
	err  error
}

func (l *fakeList) Upsert(_ context.Context, s Subscriber) error {
	if l.err != nil {
		return l.err
	}
	l.subs = append(l.subs, s)
	return nil
}

type fakeAlerts struct {
	alerts []purchases.OwnerAlertPayload
	err    error
}

func (a *fakeAlerts) Alert(_ context.Context, p purchases.OwnerAlertPayload) error {
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, p)
	return nil
}

type fakePublisher struct {
	msgs []kafkago.Message
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

type memDedup struct {
	seen      map[string]bool
	committed []string
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Commit(_ context.Context, id string) error {
	d.committed = append(d.committed, id)
	return nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}
