// Package events fans completion signals out to the clients watching them.
// It replaces polling of routine state with a cancellable subscription.
package events

import (
	"alcyxob/fitness-coach/internal/domain"
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultBuffer = 16

// Publisher is the side of the broker the execution tracker depends on.
type Publisher interface {
	Publish(signal domain.Signal)
}

// Broker delivers signals to subscribers keyed by client DNI.
// Delivery is best effort: a subscriber whose buffer is full misses the signal.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	log    *zap.Logger
}

type subscription struct {
	ch   chan domain.Signal
	done chan struct{}
	once sync.Once
}

// NewBroker creates a broker. A buffer <= 0 uses the default.
func NewBroker(buffer int, log *zap.Logger) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		subs:   map[string]map[*subscription]struct{}{},
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers interest in a client's signals. The returned channel is
// closed when ctx is done or cancel is called, whichever comes first.
func (b *Broker) Subscribe(ctx context.Context, clientDNI string) (<-chan domain.Signal, func()) {
	sub := &subscription{
		ch:   make(chan domain.Signal, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[clientDNI] == nil {
		b.subs[clientDNI] = map[*subscription]struct{}{}
	}
	b.subs[clientDNI][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[clientDNI], sub)
			if len(b.subs[clientDNI]) == 0 {
				delete(b.subs, clientDNI)
			}
			close(sub.ch)
			close(sub.done)
			b.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel
}

// Publish hands the signal to every current subscriber of its client.
func (b *Broker) Publish(signal domain.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[signal.ClientDNI] {
		select {
		case sub.ch <- signal:
		default:
			b.log.Warn("dropping signal for slow subscriber",
				zap.String("kind", string(signal.Kind)),
				zap.String("clientDni", signal.ClientDNI),
			)
		}
	}
}

// Subscribers returns how many subscriptions are open for a client.
func (b *Broker) Subscribers(clientDNI string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[clientDNI])
}
