// Package collab runs several plugins over one query in rounds and
// synthesizes their answers into a consensus.
package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/rag/stance"
	"ai-plugin-engine/pkg/retry"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	op = "collab.Run"

	MinExperts = 2
	MaxExperts = 5
	MaxRounds  = 3
)

var tracer = otel.Tracer("ai-plugin-engine/collab")

// ExpertRequest is one expert invocation. Instructions carry the round's
// framing and, after round 1, the peers' previous answers.
type ExpertRequest struct {
	Slug         string
	Query        string
	Round        int
	Instructions []string
}

// ExpertReply is the expert's raw answer before stance and revision parsing.
type ExpertReply struct {
	Domain     string
	Answer     string
	Citations  []entity.CitationEntry
	Confidence entity.Confidence
}

// ExpertRunner performs a single call; the orchestrator owns timeout and retry.
type ExpertRunner interface {
	Ask(ctx context.Context, req ExpertRequest) (*ExpertReply, error)
}

// SessionStore persists the session. AppendRound moves the session to
// deliberating; Finalize is called exactly once.
type SessionStore interface {
	Create(ctx context.Context, session *entity.CollaborationSession) error
	AppendRound(ctx context.Context, sessionId uuid.UUID, round entity.CollaborationRound) error
	Finalize(ctx context.Context, sessionId uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData, reason string) error
}

type Config struct {
	SessionId uuid.UUID
	Experts   []string
	Query     string
	Mode      entity.CollaborationMode
	MaxRounds int
	CallerId  *uuid.UUID
}

// Degradation reports experts excluded from a session that still completed.
type Degradation struct {
	Kind     string   `json:"kind"`
	Excluded []string `json:"excluded"`
}

type Result struct {
	SessionId uuid.UUID                   `json:"sessionId"`
	Status    entity.SessionStatus        `json:"status"`
	Mode      entity.CollaborationMode    `json:"mode"`
	Rounds    []entity.CollaborationRound `json:"rounds"`
	Consensus *entity.ConsensusData       `json:"consensus"`
	Degraded  *Degradation                `json:"degraded,omitempty"`
	LatencyMs int64                       `json:"latencyMs"`
}

// SessionEvent opens a collaboration stream.
type SessionEvent struct {
	SessionId uuid.UUID                `json:"sessionId"`
	Experts   []string                 `json:"experts"`
	Mode      entity.CollaborationMode `json:"mode"`
	MaxRounds int                      `json:"maxRounds"`
}

type ExpertEvent struct {
	Round    int                   `json:"round"`
	Response entity.ExpertResponse `json:"response"`
}

type Orchestrator struct {
	runner ExpertRunner
	store  SessionStore
	policy retry.Policy
	logger logger.ILogger
}

// New builds an orchestrator. policy bounds a whole expert turn, including
// the retries the runner makes internally.
func New(runner ExpertRunner, store SessionStore, policy retry.Policy, log logger.ILogger) *Orchestrator {
	return &Orchestrator{runner: runner, store: store, policy: policy, logger: log}
}

// Validate normalizes cfg: slugs are trimmed, the mode defaults to consensus
// and MaxRounds is clamped to [1, 3], with 0 meaning 3.
func Validate(cfg Config) (Config, error) {
	if err := executor.ValidateQuery(cfg.Query); err != nil {
		return cfg, err
	}

	seen := map[string]bool{}
	experts := make([]string, 0, len(cfg.Experts))
	for _, slug := range cfg.Experts {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			return cfg, engineerr.Validation(op, "expert slug is empty")
		}
		if seen[strings.ToLower(slug)] {
			return cfg, engineerr.Validation(op, "expert %q is listed twice", slug)
		}
		seen[strings.ToLower(slug)] = true
		experts = append(experts, slug)
	}
	if len(experts) < MinExperts || len(experts) > MaxExperts {
		return cfg, engineerr.Validation(op, "a collaboration needs %d to %d experts, got %d", MinExperts, MaxExperts, len(experts))
	}
	cfg.Experts = experts

	switch cfg.Mode {
	case "":
		cfg.Mode = entity.ModeConsensus
	case entity.ModeDebate, entity.ModeConsensus, entity.ModeReview:
	default:
		return cfg, engineerr.Validation(op, "unknown mode %q", cfg.Mode)
	}

	if cfg.MaxRounds <= 0 || cfg.MaxRounds > MaxRounds {
		cfg.MaxRounds = MaxRounds
	}
	if cfg.SessionId == uuid.Nil {
		cfg.SessionId = uuid.New()
	}
	return cfg, nil
}

func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Result, error) {
	return o.run(ctx, cfg, nil)
}

// RunStream emits session, then expert_response as each expert finishes,
// round_complete after every round and consensus at the end. The caller sends
// the terminal event.
func (o *Orchestrator) RunStream(ctx context.Context, cfg Config, sink stream.Sink) (*Result, error) {
	return o.run(ctx, cfg, sink)
}

func (o *Orchestrator) run(ctx context.Context, cfg Config, sink stream.Sink) (*Result, error) {
	cfg, err := Validate(cfg)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("collab.session_id", cfg.SessionId.String()),
		attribute.String("collab.mode", string(cfg.Mode)),
		attribute.Int("collab.experts", len(cfg.Experts)),
	)

	start := time.Now()
	session := &entity.CollaborationSession{
		Id:        cfg.SessionId,
		CallerId:  cfg.CallerId,
		Experts:   cfg.Experts,
		Query:     cfg.Query,
		Mode:      cfg.Mode,
		MaxRounds: cfg.MaxRounds,
		Status:    entity.SessionPending,
		CreatedAt: start,
	}
	if err := o.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create collaboration session: %w", err)
	}

	res := &Result{SessionId: cfg.SessionId, Mode: cfg.Mode, Rounds: []entity.CollaborationRound{}}
	consensus, err := o.deliberate(ctx, cfg, res, sink)
	res.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		reason := err.Error()
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		o.finalize(context.WithoutCancel(ctx), cfg.SessionId, entity.SessionError, nil, reason)
		return nil, err
	}

	res.Status = entity.SessionComplete
	res.Consensus = consensus
	o.finalize(ctx, cfg.SessionId, entity.SessionComplete, consensus, "")

	if err := stream.Emit(ctx, sink, stream.KindConsensus, consensus); err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) deliberate(ctx context.Context, cfg Config, res *Result, sink stream.Sink) (*entity.ConsensusData, error) {
	if err := stream.Emit(ctx, sink, stream.KindSession, SessionEvent{
		SessionId: cfg.SessionId,
		Experts:   cfg.Experts,
		Mode:      cfg.Mode,
		MaxRounds: cfg.MaxRounds,
	}); err != nil {
		return nil, err
	}

	var (
		active     = append([]string{}, cfg.Experts...)
		previous   = map[string]entity.ExpertResponse{}
		final      []entity.ExpertResponse
		exclusions []entity.ConflictEntry
		excluded   []string
	)

	for round := 1; round <= cfg.MaxRounds; round++ {
		outcomes, err := o.runRound(ctx, cfg, round, active, previous, sink)
		if err != nil {
			return nil, err
		}

		record := entity.CollaborationRound{Round: round, Responses: []entity.ExpertResponse{}}
		survivors := active[:0:0]
		for i, slug := range active {
			out := outcomes[i]
			if out.err != nil {
				reason := out.err.Error()
				o.logger.Warn("COLLAB", "Expert excluded", map[string]interface{}{
					"session": cfg.SessionId.String(),
					"expert":  slug,
					"round":   round,
					"error":   reason,
				})
				excluded = append(excluded, slug)
				record.Excluded = append(record.Excluded, slug)
				exclusions = append(exclusions, exclusionEntry(slug, round, reason))
				continue
			}
			survivors = append(survivors, slug)
			record.Responses = append(record.Responses, *out.response)
			if out.response.Revised {
				record.Revisions++
			}
		}
		active = survivors

		if err := o.store.AppendRound(ctx, cfg.SessionId, record); err != nil {
			return nil, fmt.Errorf("failed to append round %d: %w", round, err)
		}
		res.Rounds = append(res.Rounds, record)
		if err := stream.Emit(ctx, sink, stream.KindRoundComplete, record); err != nil {
			return nil, err
		}

		if len(active) < MinExperts {
			return nil, engineerr.New(engineerr.KindSessionFailure, op,
				fmt.Sprintf("only %d of %d experts remain after round %d", len(active), len(cfg.Experts), round))
		}

		final = record.Responses
		previous = map[string]entity.ExpertResponse{}
		for _, r := range final {
			previous[r.PluginSlug] = r
		}
		if round > 1 && record.Revisions == 0 {
			break
		}
	}

	if len(excluded) > 0 {
		res.Degraded = &Degradation{Kind: string(engineerr.KindPartialCollab), Excluded: excluded}
	}
	consensus := Synthesize(cfg.Query, final, exclusions, len(excluded))
	return &consensus, nil
}

type expertOutcome struct {
	response *entity.ExpertResponse
	err      error
}

// runRound calls every active expert concurrently and waits for all of them.
// An expert failure is recorded in its outcome; only cancellation and stream
// failures abort the round.
func (o *Orchestrator) runRound(ctx context.Context, cfg Config, round int, active []string, previous map[string]entity.ExpertResponse, sink stream.Sink) ([]expertOutcome, error) {
	ctx, span := tracer.Start(ctx, "collab.round")
	defer span.End()
	span.SetAttributes(attribute.Int("collab.round", round), attribute.Int("collab.active", len(active)))

	outcomes := make([]expertOutcome, len(active))
	var g errgroup.Group
	g.SetLimit(len(active))
	for i, slug := range active {
		g.Go(func() error {
			req := ExpertRequest{
				Slug:         slug,
				Query:        cfg.Query,
				Round:        round,
				Instructions: instructions(cfg, round, slug, len(active), previous),
			}
			reply, err := retry.Do(ctx, o.policy, func(callCtx context.Context) (*ExpertReply, error) {
				return o.runner.Ask(callCtx, req)
			})
			if err != nil {
				outcomes[i] = expertOutcome{err: err}
				return nil
			}

			var prior *entity.ExpertResponse
			if p, ok := previous[slug]; ok {
				prior = &p
			}
			resp := buildResponse(slug, round, reply, prior)
			outcomes[i] = expertOutcome{response: &resp}
			return stream.Emit(ctx, sink, stream.KindExpertResponse, ExpertEvent{Round: round, Response: resp})
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// buildResponse reads the stance and, after round 1, the revision declaration.
// An undeclared revision is inferred from a stance that is no longer
// compatible with the expert's previous one.
func buildResponse(slug string, round int, reply *ExpertReply, prior *entity.ExpertResponse) entity.ExpertResponse {
	resp := entity.ExpertResponse{
		PluginSlug: slug,
		Domain:     reply.Domain,
		Answer:     strings.TrimSpace(reply.Answer),
		Citations:  reply.Citations,
		Confidence: reply.Confidence,
	}
	if resp.Citations == nil {
		resp.Citations = []entity.CitationEntry{}
	}
	if round == 1 || prior == nil {
		resp.Stance = stance.Extract(resp.Answer)
		return resp
	}

	rev := stance.ParseRevision(reply.Answer)
	if strings.TrimSpace(rev.Answer) == "" {
		kept := *prior
		kept.Revised = false
		kept.RevisionNote = ""
		return kept
	}
	resp.Answer = rev.Answer
	resp.Stance = stance.Extract(rev.Answer)
	if rev.Declared {
		resp.Revised = rev.Revised
		resp.RevisionNote = rev.Note
	} else if !stance.Compatible(prior.Stance, resp.Stance) {
		resp.Revised = true
		resp.RevisionNote = "position changed"
	}
	return resp
}

func (o *Orchestrator) finalize(ctx context.Context, id uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData, reason string) {
	if err := o.store.Finalize(ctx, id, status, consensus, reason); err != nil {
		o.logger.Error("COLLAB", "Failed to finalize session", map[string]interface{}{
			"session": id.String(),
			"status":  string(status),
			"error":   err.Error(),
		})
	}
}
