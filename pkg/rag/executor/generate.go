package executor

import (
	"context"

	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/retriever"
	"ai-plugin-engine/pkg/retry"
	"ai-plugin-engine/pkg/stream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-plugin-engine/executor")

// Settings are shared by the query and review executors.
type Settings struct {
	Policy     retry.Policy
	Retrieval  retriever.Options
	Generation []llm.Option
	// Review only; zero values take the package defaults.
	ReviewConcurrency int
	SegmentSize       int
}

func DefaultSettings() Settings {
	return Settings{Policy: retry.DefaultPolicy(), Retrieval: retriever.DefaultOptions()}
}

func (s Settings) retrieval(opts retriever.Options) retriever.Options {
	if opts == (retriever.Options{}) {
		return s.Retrieval
	}
	if opts.TopK <= 0 {
		opts.TopK = s.Retrieval.TopK
	}
	return opts
}

// Delta is the payload of a delta event. SegmentIndex is set in review mode.
type Delta struct {
	SegmentIndex *int   `json:"segmentIndex,omitempty"`
	Text         string `json:"text"`
}

// Reset tells the consumer to discard streamed text before a regeneration.
type Reset struct {
	SegmentIndex *int   `json:"segmentIndex,omitempty"`
	Reason       string `json:"reason"`
}

type generator struct {
	provider llm.LLMProvider
	policy   retry.Policy
	options  []llm.Option
}

// generate runs one generation under the retry policy. With a sink the text is
// streamed as delta events, and an attempt that already streamed is not retried.
func (g generator) generate(ctx context.Context, messages []llm.Message, sink stream.Sink, segment *int) (string, error) {
	ctx, span := tracer.Start(ctx, "executor.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.messages", len(messages)), attribute.Bool("llm.stream", sink != nil))

	var (
		answer string
		err    error
	)
	if sink == nil {
		answer, err = retry.Do(ctx, g.policy, func(callCtx context.Context) (string, error) {
			return g.provider.Chat(callCtx, messages, g.options...)
		})
	} else {
		streamed := false
		answer, err = retry.Do(ctx, g.policy, func(callCtx context.Context) (string, error) {
			out, err := g.provider.ChatStream(callCtx, messages, func(text string) error {
				streamed = true
				return stream.Emit(ctx, sink, stream.KindDelta, Delta{SegmentIndex: segment, Text: text})
			}, g.options...)
			if err != nil && streamed {
				return out, retry.Permanent(err)
			}
			return out, err
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", err
	}
	return answer, nil
}

// failure keeps cancellation errors as they are and types everything else.
func failure(ctx context.Context, kind engineerr.Kind, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if engineerr.KindOf(err) != engineerr.KindInternal {
		return err
	}
	return engineerr.Wrap(kind, op, err)
}
