// Package stream carries pipeline events from a producer to one consumer.
package stream

import "context"

type Kind string

const (
	KindSession        Kind = "session"
	KindDelta          Kind = "delta"
	KindReset          Kind = "reset"
	KindCitations      Kind = "citations"
	KindDecisionPath   Kind = "decision_path"
	KindAnnotation     Kind = "annotation"
	KindSummary        Kind = "summary"
	KindResult         Kind = "result"
	KindExpertResponse Kind = "expert_response"
	KindRoundComplete  Kind = "round_complete"
	KindConsensus      Kind = "consensus"
	KindDone           Kind = "done"
	KindError          Kind = "error"
)

// Terminal kinds end a stream; exactly one is delivered.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindError
}

type Event struct {
	Seq     int         `json:"seq"`
	Kind    Kind        `json:"kind"`
	Payload interface{} `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Sink receives events. Emit blocks until the consumer accepts the event or ctx ends.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// Emit is a nil-safe helper for producers with an optional sink.
func Emit(ctx context.Context, sink Sink, kind Kind, payload interface{}) error {
	if sink == nil {
		return nil
	}
	return sink.Emit(ctx, Event{Kind: kind, Payload: payload})
}
