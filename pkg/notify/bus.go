// Package notify is the intra-process publish/subscribe bus coupling
// writer-side pool creation to reader-side enrichment. Generalized from the
// websocket hub's broadcast-to-subscribers idiom: any payload type, any
// topic name, one worker goroutine per subscription so a slow handler
// never blocks Publish.
package notify

import "sync"

// Handler processes one published payload. Handlers run on their
// subscription's dedicated worker goroutine, never on the publisher's.
type Handler func(payload any)

// Bus is a named-topic pub/sub. Each subscription buffers up to 256
// undelivered payloads; a publish that finds that buffer full drops the
// payload for that subscriber, so delivery is not guaranteed under
// overload. Ordering across concurrent publishes on the same topic is not
// guaranteed. Persistence is not provided.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*subscription
}

type subscription struct {
	ch chan any
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers handler on topic. It returns an unsubscribe func that
// stops the worker and drops the subscription.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	sub := &subscription{ch: make(chan any, 256)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case payload, ok := <-sub.ch:
				if !ok {
					return
				}
				handler(payload)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			subs := b.subs[topic]
			for i, s := range subs {
				if s == sub {
					b.subs[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(done)
		})
	}
}

// Publish fans payload out to every topic subscriber. A subscriber whose
// buffer is full is skipped for this publish rather than blocking the
// caller; that subscriber never receives this payload.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- payload:
		default:
		}
	}
}
