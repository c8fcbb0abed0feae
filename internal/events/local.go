package events

import (
	"context"
	"log/slog"
	"sync"
)

// LocalBus delivers events in process through a buffered queue drained by a
// single worker. Close waits until every queued event has been handled.
type LocalBus struct {
	queue chan *TicketCompleted

	mu     sync.RWMutex
	closed bool

	hmu      sync.Mutex
	handlers []Handler

	start sync.Once
	wg    sync.WaitGroup
}

func NewLocalBus(buffer int) *LocalBus {
	if buffer < 1 {
		buffer = 1
	}
	return &LocalBus{queue: make(chan *TicketCompleted, buffer)}
}

func (b *LocalBus) Subscribe(h Handler) {
	b.hmu.Lock()
	b.handlers = append(b.handlers, h)
	b.hmu.Unlock()

	b.start.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

func (b *LocalBus) Publish(ctx context.Context, evt *TicketCompleted) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBus) run() {
	defer b.wg.Done()

	for evt := range b.queue {
		b.hmu.Lock()
		handlers := append([]Handler(nil), b.handlers...)
		b.hmu.Unlock()

		for _, h := range handlers {
			if err := h(context.Background(), evt); err != nil {
				slog.Error("Failed to handle ticket completed event",
					"error", err, "ticket_id", evt.TicketID, "reference", evt.Reference)
			}
		}
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	// drain events queued before any subscriber arrived
	b.start.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
	b.wg.Wait()
	return nil
}
