package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/citation"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/retriever"
	"ai-plugin-engine/pkg/retry"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM replies from a list (the last reply repeats) or from respond.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
	respond func(messages []llm.Message) (string, error)
}

func (s *scriptedLLM) next(ctx context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.respond != nil {
		return s.respond(messages)
	}
	if s.err != nil {
		return "", s.err
	}
	i := s.calls - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.next(ctx, history)
}

func (s *scriptedLLM) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, options ...llm.Option) (string, error) {
	out, err := s.next(ctx, history)
	if err != nil {
		return "", err
	}
	for _, piece := range strings.SplitAfter(out, " ") {
		if err := onDelta(piece); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticRetriever struct {
	chunks []*entity.RetrievedChunk
	err    error
}

func (r staticRetriever) Retrieve(ctx context.Context, pluginId uuid.UUID, query string, opts retriever.Options) ([]*entity.RetrievedChunk, error) {
	return r.chunks, r.err
}

type memoryAudit struct {
	mu      sync.Mutex
	queries []*entity.QueryLog
	reviews []*entity.ReviewLog
}

func (m *memoryAudit) WriteQuery(ctx context.Context, log *entity.QueryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, log)
	return nil
}

func (m *memoryAudit) WriteReview(ctx context.Context, log *entity.ReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, log)
	return nil
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Policy = retry.Policy{Timeout: time.Second, Retries: 1, Delay: time.Millisecond}
	return s
}

func testChunks() []*entity.RetrievedChunk {
	plugin := uuid.New()
	doc := uuid.New()
	return []*entity.RetrievedChunk{
		{Chunk: entity.Chunk{Id: uuid.New(), DocumentId: doc, PluginId: plugin, ChunkIndex: 0, Content: "Leases above 12 months need a notarised deed."}, Similarity: 0.82, DocumentName: "Tenancy Act"},
		{Chunk: entity.Chunk{Id: uuid.New(), DocumentId: doc, PluginId: plugin, ChunkIndex: 1, Content: "Deposits are capped at two months of rent."}, Similarity: 0.61, DocumentName: "Tenancy Act"},
	}
}

func testProfile(mode entity.CitationMode) *Profile {
	return &Profile{Plugin: &entity.Plugin{
		Id:           uuid.New(),
		Slug:         "tenancy-law",
		Name:         "Tenancy Law",
		Domain:       "residential tenancy",
		CitationMode: mode,
		IsActive:     true,
	}}
}

func newQueryExecutor(provider llm.LLMProvider, chunks []*entity.RetrievedChunk, audit AuditWriter) *QueryExecutor {
	return NewQueryExecutor(staticRetriever{chunks: chunks}, decision.NewEvaluator(decision.MatchSubstring), provider, audit, testSettings(), logger.NewNopLogger())
}

func TestQuery_MandatoryCitationGap(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"Long leases need a deed.",
		"Long leases need a deed, as far as I know.",
	}}
	audit := &memoryAudit{}
	q := newQueryExecutor(model, testChunks(), audit)

	res, err := q.Run(context.Background(), QueryRequest{Profile: testProfile(entity.CitationModeMandatory), Query: "Does a 2 year lease need a deed?"})
	require.NoError(t, err)

	assert.Equal(t, 2, model.callCount(), "exactly one corrective retry")
	assert.Equal(t, 1, res.Retries)
	assert.True(t, res.CitationGap)
	assert.NotEmpty(t, res.GapDescription)
	assert.Equal(t, entity.ConfidenceLow, res.Confidence)
	assert.Empty(t, res.Citations)

	require.Len(t, audit.queries, 1)
	assert.Equal(t, entity.AuditSuccess, audit.queries[0].Status)
	assert.Equal(t, res.GapDescription, audit.queries[0].CitationGap)
	assert.Equal(t, audit.queries[0].Id, res.AuditId)
}

func TestQuery_CorrectiveRetrySucceeds(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"Long leases need a deed [7].",
		"Leases over a year need a notarised deed [1].",
	}}
	q := newQueryExecutor(model, testChunks(), nil)

	res, err := q.Run(context.Background(), QueryRequest{Profile: testProfile(entity.CitationModeMandatory), Query: "Does a 2 year lease need a deed?"})
	require.NoError(t, err)

	assert.Equal(t, 2, model.callCount())
	assert.False(t, res.CitationGap)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, 1, res.Citations[0].Rank)
	assert.Equal(t, "Tenancy Act", res.Citations[0].DocumentName)
	assert.Equal(t, entity.ConfidenceHigh, res.Confidence)
}

func TestQuery_OptionalModeDoesNotRetry(t *testing.T) {
	model := &scriptedLLM{replies: []string{"Long leases need a deed."}}
	q := newQueryExecutor(model, testChunks(), nil)

	res, err := q.Run(context.Background(), QueryRequest{Profile: testProfile(entity.CitationModeOptional), Query: "lease deed?"})
	require.NoError(t, err)
	assert.Equal(t, 1, model.callCount())
	assert.Len(t, res.Citations, 2, "uncited answers list the excerpts they were given")
	assert.Equal(t, entity.ConfidenceHigh, res.Confidence)
}

func TestQuery_Errors(t *testing.T) {
	inactive := testProfile(entity.CitationModeNone)
	inactive.Plugin.IsActive = false

	tests := []struct {
		name      string
		profile   *Profile
		query     string
		model     *scriptedLLM
		retriever staticRetriever
		wantKind  engineerr.Kind
		wantCalls int
		wantAudit bool
	}{
		{
			name:      "oversized query",
			profile:   testProfile(entity.CitationModeNone),
			query:     strings.Repeat("a", MaxQueryLength+1),
			model:     &scriptedLLM{replies: []string{"x"}},
			wantKind:  engineerr.KindValidation,
			wantCalls: 0,
		},
		{
			name:      "unresolved plugin",
			profile:   nil,
			query:     "q",
			model:     &scriptedLLM{replies: []string{"x"}},
			wantKind:  engineerr.KindAccessDenied,
			wantCalls: 0,
		},
		{
			name:      "inactive plugin",
			profile:   inactive,
			query:     "q",
			model:     &scriptedLLM{replies: []string{"x"}},
			wantKind:  engineerr.KindAccessDenied,
			wantCalls: 0,
		},
		{
			name:      "generation fails twice",
			profile:   testProfile(entity.CitationModeNone),
			query:     "q",
			model:     &scriptedLLM{err: errors.New("model unavailable")},
			retriever: staticRetriever{chunks: testChunks()},
			wantKind:  engineerr.KindGeneration,
			wantCalls: 2,
			wantAudit: true,
		},
		{
			name:      "retrieval fails",
			profile:   testProfile(entity.CitationModeNone),
			query:     "q",
			model:     &scriptedLLM{replies: []string{"x"}},
			retriever: staticRetriever{err: engineerr.New(engineerr.KindRetrieval, "retriever.Retrieve", "db down")},
			wantKind:  engineerr.KindRetrieval,
			wantCalls: 0,
			wantAudit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &memoryAudit{}
			q := NewQueryExecutor(tt.retriever, decision.NewEvaluator(""), tt.model, audit, testSettings(), logger.NewNopLogger())

			_, err := q.Run(context.Background(), QueryRequest{Profile: tt.profile, Query: tt.query})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, engineerr.KindOf(err))
			assert.Equal(t, tt.wantCalls, tt.model.callCount())

			if tt.wantAudit {
				require.Len(t, audit.queries, 1)
				assert.Equal(t, entity.AuditError, audit.queries[0].Status)
				assert.Equal(t, string(tt.wantKind), audit.queries[0].ErrorKind)
			} else {
				assert.Empty(t, audit.queries)
			}
		})
	}
}

func TestQuery_CancelledWritesNoAudit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedLLM{respond: func(messages []llm.Message) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	audit := &memoryAudit{}
	q := newQueryExecutor(model, testChunks(), audit)

	_, err := q.Run(ctx, QueryRequest{Profile: testProfile(entity.CitationModeNone), Query: "q"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, audit.queries)
}

func TestQuery_DecisionPath(t *testing.T) {
	profile := testProfile(entity.CitationModeOptional)
	profile.Tree = &entity.DecisionTree{
		Id:         uuid.New(),
		RootNodeId: "term",
		IsActive:   true,
		Nodes: map[string]entity.DecisionNode{
			"term":  {Id: "term", Type: entity.NodeTypeCondition, Field: "months", Operator: entity.OperatorGt, Value: "12", TrueChildId: "deed", FalseChildId: "plain"},
			"deed":  {Id: "deed", Type: entity.NodeTypeAction, Recommendation: "A notarised deed is required", Severity: entity.SeverityWarning},
			"plain": {Id: "plain", Type: entity.NodeTypeAction, Recommendation: "A written agreement is enough", Severity: entity.SeverityInfo},
		},
	}
	model := &scriptedLLM{replies: []string{"A deed is required [1]."}}
	q := newQueryExecutor(model, testChunks(), nil)

	res, err := q.Run(context.Background(), QueryRequest{Profile: profile, Query: "lease for months: 24, is a deed needed?"})
	require.NoError(t, err)
	require.Len(t, res.DecisionPath, 2)
	assert.Equal(t, "true", res.DecisionPath[0].Result)
	assert.Equal(t, "deed", res.DecisionPath[1].NodeId)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, "A notarised deed is required", res.Recommendation.Recommendation)
}

func collect(t *testing.T, run func(ctx context.Context, sink stream.Sink) error) []stream.Event {
	t.Helper()
	sink := stream.NewChannelSink(0)
	stream.Run(context.Background(), sink, run)

	var events []stream.Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	return events
}

func kinds(events []stream.Event) []stream.Kind {
	out := make([]stream.Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestQueryStream_EventOrder(t *testing.T) {
	model := &scriptedLLM{replies: []string{"No deed needed [2].", "A deed is needed [1]."}}
	q := newQueryExecutor(model, testChunks(), nil)

	events := collect(t, func(ctx context.Context, sink stream.Sink) error {
		_, err := q.RunStream(ctx, QueryRequest{Profile: testProfile(entity.CitationModeOptional), Query: "deed?"}, sink)
		return err
	})

	got := kinds(events)
	assert.Equal(t, []stream.Kind{
		stream.KindDelta, stream.KindDelta, stream.KindDelta, stream.KindDelta,
		stream.KindCitations, stream.KindDecisionPath, stream.KindResult, stream.KindDone,
	}, got)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestQueryStream_ResetBeforeRegeneration(t *testing.T) {
	model := &scriptedLLM{replies: []string{"No citations here.", "Cited [1]."}}
	q := newQueryExecutor(model, testChunks(), nil)

	events := collect(t, func(ctx context.Context, sink stream.Sink) error {
		_, err := q.RunStream(ctx, QueryRequest{Profile: testProfile(entity.CitationModeMandatory), Query: "deed?"}, sink)
		return err
	})

	got := kinds(events)
	assert.Contains(t, got, stream.KindReset)
	assert.Equal(t, stream.KindDone, got[len(got)-1])
}

func TestQueryStream_ErrorIsTerminal(t *testing.T) {
	model := &scriptedLLM{err: errors.New("model unavailable")}
	q := newQueryExecutor(model, testChunks(), nil)

	events := collect(t, func(ctx context.Context, sink stream.Sink) error {
		_, err := q.RunStream(ctx, QueryRequest{Profile: testProfile(entity.CitationModeNone), Query: "deed?"}, sink)
		return err
	})

	require.Len(t, events, 1)
	assert.Equal(t, stream.KindError, events[0].Kind)
	payload, ok := events[0].Payload.(stream.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, string(engineerr.KindGeneration), payload.Kind)
}

func TestScoreConfidence(t *testing.T) {
	chunks := testChunks()
	weak := []*entity.RetrievedChunk{{Similarity: 0.45}}
	halted := &decision.Outcome{Path: []entity.DecisionStep{{Step: 1, NodeId: "q"}}}

	tests := []struct {
		name    string
		mode    entity.CitationMode
		answer  string
		chunks  []*entity.RetrievedChunk
		outcome *decision.Outcome
		want    entity.Confidence
	}{
		{name: "nothing retrieved", mode: entity.CitationModeNone, answer: "x", chunks: nil, want: entity.ConfidenceLow},
		{name: "fully cited", mode: entity.CitationModeMandatory, answer: "a [1]\n\nb [2]", chunks: chunks, want: entity.ConfidenceHigh},
		{name: "half cited", mode: entity.CitationModeMandatory, answer: "a [1]\n\nb", chunks: chunks, want: entity.ConfidenceHigh},
		{name: "third cited", mode: entity.CitationModeMandatory, answer: "a [1]\n\nb\n\nc", chunks: chunks, want: entity.ConfidenceMedium},
		{name: "invalid marker lowers", mode: entity.CitationModeMandatory, answer: "a [1] [9]", chunks: chunks, want: entity.ConfidenceMedium},
		{name: "uncited strong retrieval", mode: entity.CitationModeNone, answer: "a", chunks: chunks, want: entity.ConfidenceHigh},
		{name: "uncited weak retrieval", mode: entity.CitationModeOptional, answer: "a", chunks: weak, want: entity.ConfidenceLow},
		{name: "halted tree lowers", mode: entity.CitationModeNone, answer: "a", chunks: chunks, outcome: halted, want: entity.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := citation.Validate(tt.answer, len(tt.chunks))
			assert.Equal(t, tt.want, scoreConfidence(tt.mode, report, tt.chunks, tt.outcome))
		})
	}
}
