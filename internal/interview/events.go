package interview

import (
	"sync"

	"go.uber.org/zap"
)

const defaultEventBuffer = 16

// broker fans stage changes out to subscribers without ever blocking the publisher.
type broker struct {
	mu     sync.Mutex
	subs   map[int]chan StageChange
	next   int
	closed bool
	logger *zap.Logger
}

func newBroker(logger *zap.Logger) *broker {
	return &broker{subs: make(map[int]chan StageChange), logger: logger}
}

// subscribe returns a channel of stage changes and a func that detaches it.
// The channel is closed after the terminal event or on detach.
func (b *broker) subscribe(buffer int) (<-chan StageChange, func()) {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	ch := make(chan StageChange, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *broker) publish(change StageChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.logger.Warn("dropping stage change for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("stage", string(change.Stage)),
				zap.Int("question_index", change.Index),
			)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
