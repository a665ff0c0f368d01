package stream

import (
	"context"
	"sync"
)

// Tee forwards every event to primary, then best-effort to observers.
// Observer failures never affect the primary stream.
type Tee struct {
	mu        sync.Mutex
	seq       int
	primary   Finisher
	observers []func(ev Event)
}

func NewTee(primary Finisher, observers ...func(ev Event)) *Tee {
	return &Tee{primary: primary, observers: observers}
}

func (t *Tee) Emit(ctx context.Context, ev Event) error {
	if err := t.primary.Emit(ctx, ev); err != nil {
		return err
	}
	t.observe(ev)
	return nil
}

func (t *Tee) Finish(ctx context.Context, err error) {
	t.primary.Finish(ctx, err)
	t.observe(TerminalEvent(err))
}

func (t *Tee) observe(ev Event) {
	t.mu.Lock()
	t.seq++
	ev.Seq = t.seq
	t.mu.Unlock()
	for _, observe := range t.observers {
		observe(ev)
	}
}
