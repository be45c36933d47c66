// Package realtime fans order changes out to the subscribers of the admin dashboard.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/order"
)

// subscriberBuffer is how many changes a slow subscriber may lag behind before changes are dropped for it.
const subscriberBuffer = 64

// Feed streams order changes until ctx is done.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan order.Change, error)
}

// Broker is an in-process Feed. Publish never blocks.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan order.Change
	nextID int
	closed bool
	logger core.Logger
}

var _ Feed = (*Broker)(nil)

func NewBroker(logger core.Logger) *Broker {
	return &Broker{subs: make(map[int]chan order.Change), logger: logger}
}

// Subscribe registers a subscriber; its channel is closed once ctx is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) (<-chan order.Change, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	ch := make(chan order.Change, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()
	return ch, nil
}

func (b *Broker) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broker) Publish(ch order.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		select {
		case sub <- ch:
		default:
			b.logger.Warn(fmt.Sprintf("realtime.Publish: subscriber %d lagging, dropped change of order %s", id, ch.OrderID))
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
