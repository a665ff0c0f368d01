package stream

import (
	"context"
	"errors"
	"sync"

	"ai-plugin-engine/pkg/rag/engineerr"
)

var ErrClosed = errors.New("stream: closed")

// ChannelSink hands events to a consumer over a small buffered channel.
// Producers block when the buffer is full. It is safe for concurrent producers.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	seq    int
	closed bool
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events is closed after the terminal event.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

func (s *ChannelSink) Emit(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.seq++
	ev.Seq = s.seq

	select {
	case s.ch <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	if ev.Kind.Terminal() {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Finish delivers the terminal event for err (done when nil) unless one was
// already sent, then closes the channel. If ctx ends before the consumer takes
// the event the channel is closed without it.
func (s *ChannelSink) Finish(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	defer close(s.ch)

	s.seq++
	ev := TerminalEvent(err)
	ev.Seq = s.seq
	select {
	case s.ch <- ev:
	case <-ctx.Done():
	}
}

// TerminalEvent is done for a nil error and error otherwise.
func TerminalEvent(err error) Event {
	if err == nil {
		return Event{Kind: KindDone}
	}
	return Event{Kind: KindError, Payload: ErrorPayload{Kind: string(engineerr.KindOf(err)), Message: err.Error()}}
}

// Finisher is a sink that can deliver its own terminal event.
type Finisher interface {
	Sink
	Finish(ctx context.Context, err error)
}

// Run starts fn in its own goroutine and finishes the sink with fn's error.
// The caller consumes the sink's events until they end.
func Run(ctx context.Context, sink Finisher, fn func(ctx context.Context, sink Sink) error) {
	go func() {
		err := fn(ctx, sink)
		sink.Finish(ctx, err)
	}()
}
