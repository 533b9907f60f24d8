package bus

import (
	"context"
	"sync"
)

// LocalBus delivers events in-process. It backs single-instance deployments
// and tests.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []func(Event)
	closed   bool
}

func NewLocalBus() *LocalBus { return &LocalBus{} }

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	hs := append([]func(Event){}, b.handlers...)
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil
	}
	for _, h := range hs {
		h(ev)
	}
	return nil
}

func (b *LocalBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if onEvent == nil {
		return nil
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
