package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-plugin-engine/internal/config"
	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/internal/repository/memory"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/collab"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/rag/retriever"
	"ai-plugin-engine/pkg/retry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedLLM answers every call with the same reply.
type cannedLLM struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (c *cannedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.reply, ctx.Err()
}

func (c *cannedLLM) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, options ...llm.Option) (string, error) {
	out, err := c.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return out, onDelta(out)
}

func (c *cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// pluginRetriever returns one chunk belonging to the requested plugin.
type pluginRetriever struct{}

func (pluginRetriever) Retrieve(ctx context.Context, pluginId uuid.UUID, query string, opts retriever.Options) ([]*entity.RetrievedChunk, error) {
	return []*entity.RetrievedChunk{{
		Chunk: entity.Chunk{
			Id:         uuid.New(),
			DocumentId: uuid.New(),
			PluginId:   pluginId,
			Content:    "A deposit may not exceed two months of rent.",
		},
		Similarity:   0.8,
		DocumentName: "Lease handbook",
	}}, nil
}

type engineFixture struct {
	db       *memDB
	events   *recordingEvents
	llm      *cannedLLM
	profiles IProfileService
	query    *executor.QueryExecutor
}

func newEngineFixture(reply string) *engineFixture {
	f := &engineFixture{db: newMemDB(), events: &recordingEvents{}, llm: &cannedLLM{reply: reply}}
	f.profiles = NewProfileService(f.db, memory.NewProfileCache(time.Minute), logger.NewNopLogger())
	f.query = executor.NewQueryExecutor(
		pluginRetriever{},
		decision.NewEvaluator(decision.MatchSubstring),
		f.llm,
		NewAuditWriter(f.db, f.events),
		executor.DefaultSettings(),
		logger.NewNopLogger(),
	)
	return f
}

func (f *engineFixture) queryService() IQueryService {
	review := executor.NewReviewExecutor(pluginRetriever{}, decision.NewEvaluator(decision.MatchSubstring), f.llm, NewAuditWriter(f.db, f.events), executor.DefaultSettings(), logger.NewNopLogger())
	return NewQueryService(f.profiles, f.query, review)
}

func (f *engineFixture) collaborationService() ICollaborationService {
	policy := retry.Policy{Timeout: time.Second, Retries: 1, Delay: time.Millisecond}
	orchestrator := collab.New(NewExpertRunner(f.profiles, f.query), NewSessionStore(f.db, f.events), policy, logger.NewNopLogger())
	return NewCollaborationService(f.db, f.profiles, orchestrator)
}

func TestQueryService_PrepareQuery(t *testing.T) {
	f := newEngineFixture("unused")
	seedPlugin(f.db, "tenancy-law", true)
	svc := f.queryService()
	caller := uuid.New()

	tests := []struct {
		name     string
		slug     string
		req      *dto.QueryRequest
		wantKind engineerr.Kind
	}{
		{name: "empty query", slug: "tenancy-law", req: &dto.QueryRequest{Query: "  "}, wantKind: engineerr.KindValidation},
		{name: "oversized query", slug: "tenancy-law", req: &dto.QueryRequest{Query: strings.Repeat("a", executor.MaxQueryLength+1)}, wantKind: engineerr.KindValidation},
		{name: "unknown plugin", slug: "nope", req: &dto.QueryRequest{Query: "deposit?"}, wantKind: engineerr.KindAccessDenied},
		{
			name: "history and retrieval options carried over",
			slug: "tenancy-law",
			req: &dto.QueryRequest{
				Query:     "How large can the deposit be?",
				History:   []dto.HistoryMessage{{Role: "user", Content: "I rent a flat."}},
				Fields:    map[string]string{"party": "tenant"},
				Retrieval: &dto.RetrievalOptions{TopK: 3, Threshold: 0.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepared, err := svc.PrepareQuery(context.Background(), tt.slug, &caller, tt.req)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, engineerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "tenancy-law", prepared.Profile.Plugin.Slug)
			assert.Equal(t, &caller, prepared.CallerId)
			assert.Equal(t, []llm.Message{{Role: "user", Content: "I rent a flat."}}, prepared.History)
			assert.Equal(t, retriever.Options{TopK: 3, Threshold: 0.5}, prepared.Retrieval)
			assert.Equal(t, "tenant", prepared.Fields["party"])
		})
	}
}

func TestQueryService_RunQueryWritesAudit(t *testing.T) {
	f := newEngineFixture("The deposit is capped at two months of rent [1].")
	seedPlugin(f.db, "tenancy-law", true)

	res, err := f.queryService().RunQuery(context.Background(), "tenancy-law", nil, &dto.QueryRequest{Query: "How large can the deposit be?"})
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "two months")
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "Lease handbook", res.Citations[0].DocumentName)

	assert.Len(t, f.db.state.queryLogs, 1)
	assert.Equal(t, 1, f.events.queries)
}

func TestQueryService_PrepareReview(t *testing.T) {
	f := newEngineFixture("unused")
	seedPlugin(f.db, "tenancy-law", true)
	svc := f.queryService()

	_, err := svc.PrepareReview(context.Background(), "tenancy-law", nil, &dto.ReviewRequest{Document: ""})
	require.Error(t, err)
	assert.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))

	prepared, err := svc.PrepareReview(context.Background(), "tenancy-law", nil, &dto.ReviewRequest{Document: "Clause 1. The deposit is three months.", Title: "Lease"})
	require.NoError(t, err)
	assert.Equal(t, "Lease", prepared.Title)
	assert.Equal(t, retriever.Options{}, prepared.Retrieval)
}

func TestCollaborationService_Prepare(t *testing.T) {
	f := newEngineFixture("unused")
	seedPlugin(f.db, "tenancy-law", true)
	seedPlugin(f.db, "finance", true)
	svc := f.collaborationService()

	tests := []struct {
		name     string
		req      *dto.CollaborationRequest
		wantKind engineerr.Kind
	}{
		{name: "single expert", req: &dto.CollaborationRequest{Experts: []string{"finance"}, Query: "q"}, wantKind: engineerr.KindValidation},
		{name: "duplicate experts", req: &dto.CollaborationRequest{Experts: []string{"finance", "Finance"}, Query: "q"}, wantKind: engineerr.KindValidation},
		{name: "unknown expert", req: &dto.CollaborationRequest{Experts: []string{"finance", "tax"}, Query: "q"}, wantKind: engineerr.KindAccessDenied},
		{name: "defaults applied", req: &dto.CollaborationRequest{Experts: []string{"finance", "tenancy-law"}, Query: "q", MaxRounds: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := svc.Prepare(context.Background(), nil, tt.req)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, engineerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entity.ModeConsensus, cfg.Mode)
			assert.Equal(t, collab.MaxRounds, cfg.MaxRounds)
			assert.NotEqual(t, uuid.Nil, cfg.SessionId)
		})
	}
}

func TestCollaborationService_RunPersistsSession(t *testing.T) {
	f := newEngineFixture("The deposit is capped at two months [1].\nSTANCE: the deposit is capped at two months of rent")
	seedPlugin(f.db, "tenancy-law", true)
	seedPlugin(f.db, "finance", true)
	svc := f.collaborationService()
	ctx := context.Background()

	cfg, err := svc.Prepare(ctx, nil, &dto.CollaborationRequest{
		Experts: []string{"tenancy-law", "finance"},
		Query:   "Can my landlord ask for three months of deposit?",
	})
	require.NoError(t, err)

	res, err := svc.Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionComplete, res.Status)
	require.NotNil(t, res.Consensus)
	assert.Equal(t, 1.0, res.Consensus.AgreementLevel)
	assert.Empty(t, res.Consensus.Conflicts)
	assert.LessOrEqual(t, len(res.Rounds), cfg.MaxRounds)

	stored, err := svc.Get(ctx, res.SessionId)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionComplete, stored.Status)
	assert.Len(t, stored.Rounds, len(res.Rounds))

	assert.Equal(t, []entity.SessionStatus{entity.SessionComplete}, f.events.completed)
	assert.Zero(t, f.events.queries, "expert calls are not audited as queries")
}

func TestCollaborationService_GetUnknownSession(t *testing.T) {
	f := newEngineFixture("unused")
	_, err := f.collaborationService().Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, engineerr.KindAccessDenied, engineerr.KindOf(err))
}

// slowFlakyLLM takes delay per call and fails the first call of each plugin,
// told apart by the system prompt.
type slowFlakyLLM struct {
	mu     sync.Mutex
	delay  time.Duration
	reply  string
	always bool
	seen   map[string]bool
	calls  int
}

func (s *slowFlakyLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.mu.Lock()
	s.calls++
	key := ""
	if len(history) > 0 {
		key = history[0].Content
	}
	fail := s.always || !s.seen[key]
	s.seen[key] = true
	s.mu.Unlock()

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if fail {
		return "", errors.New("model overloaded")
	}
	return s.reply, nil
}

func (s *slowFlakyLLM) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, options ...llm.Option) (string, error) {
	out, err := s.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return out, onDelta(out)
}

func (s *slowFlakyLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (s *slowFlakyLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// newBudgetedCollaboration wires policies the way the container does.
func newBudgetedCollaboration(db *memDB, provider llm.LLMProvider) ICollaborationService {
	cfg := &config.Config{Engine: config.EngineConfig{CallTimeout: 100 * time.Millisecond, Retries: 1, RetryDelay: time.Millisecond}}
	cfg.Engine.ExpertTimeout = cfg.CallPolicy().Budget(config.ExpertTurnCalls)

	settings := executor.DefaultSettings()
	settings.Policy = cfg.CallPolicy()
	events := &recordingEvents{}
	profiles := NewProfileService(db, memory.NewProfileCache(time.Minute), logger.NewNopLogger())
	query := executor.NewQueryExecutor(pluginRetriever{}, decision.NewEvaluator(decision.MatchSubstring), provider, NewAuditWriter(db, events), settings, logger.NewNopLogger())
	orchestrator := collab.New(NewExpertRunner(profiles, query), NewSessionStore(db, events), cfg.ExpertPolicy(), logger.NewNopLogger())
	return NewCollaborationService(db, profiles, orchestrator)
}

func TestCollaborationService_TransientFailureInsideExpertTurn(t *testing.T) {
	db := newMemDB()
	seedPlugin(db, "tenancy-law", true)
	seedPlugin(db, "finance", true)
	provider := &slowFlakyLLM{
		delay: 70 * time.Millisecond,
		reply: "The deposit is capped at two months [1].\nSTANCE: the deposit is capped at two months of rent",
		seen:  map[string]bool{},
	}
	svc := newBudgetedCollaboration(db, provider)
	ctx := context.Background()

	cfg, err := svc.Prepare(ctx, nil, &dto.CollaborationRequest{
		Experts: []string{"tenancy-law", "finance"},
		Query:   "Can my landlord ask for three months of deposit?",
	})
	require.NoError(t, err)

	// Each first generation fails and its retry succeeds, so a turn outlasts
	// a single call timeout without being excluded.
	res, err := svc.Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionComplete, res.Status)
	assert.Nil(t, res.Degraded)
	require.NotEmpty(t, res.Rounds)
	assert.Len(t, res.Rounds[0].Responses, 2)
}

func TestCollaborationService_ExpertAttemptsAreBounded(t *testing.T) {
	db := newMemDB()
	seedPlugin(db, "tenancy-law", true)
	seedPlugin(db, "finance", true)
	provider := &slowFlakyLLM{always: true, seen: map[string]bool{}}
	svc := newBudgetedCollaboration(db, provider)
	ctx := context.Background()

	cfg, err := svc.Prepare(ctx, nil, &dto.CollaborationRequest{Experts: []string{"tenancy-law", "finance"}, Query: "q"})
	require.NoError(t, err)

	_, err = svc.Run(ctx, cfg)
	require.Error(t, err)
	assert.Equal(t, engineerr.KindSessionFailure, engineerr.KindOf(err))
	assert.Equal(t, 4, provider.callCount(), "one call and one retry per expert")
}
