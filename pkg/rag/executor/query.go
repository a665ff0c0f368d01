package executor

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/citation"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/prompt"
	"ai-plugin-engine/pkg/rag/retriever"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const opQuery = "executor.Query"

type QueryRequest struct {
	Profile  *Profile
	Query    string
	CallerId *uuid.UUID
	// History is prepended to the generation request and never persisted here.
	History      []llm.Message
	Retrieval    retriever.Options
	Fields       map[string]string
	Instructions []string
	SkipAudit    bool
}

type QueryResult struct {
	AuditId        uuid.UUID                `json:"auditId,omitempty"`
	PluginSlug     string                   `json:"pluginSlug"`
	Answer         string                   `json:"answer"`
	Citations      []entity.CitationEntry   `json:"citations"`
	DecisionPath   []entity.DecisionStep    `json:"decisionPath"`
	Recommendation *entity.DecisionNode     `json:"recommendation,omitempty"`
	Confidence     entity.Confidence        `json:"confidence"`
	CitationGap    bool                     `json:"citationGap"`
	GapDescription string                   `json:"gapDescription,omitempty"`
	Retries        int                      `json:"retries"`
	LatencyMs      int64                    `json:"latencyMs"`
	Retrieved      []*entity.RetrievedChunk `json:"-"`
}

type QueryExecutor struct {
	retriever Retriever
	evaluator TreeEvaluator
	gen       generator
	audit     AuditWriter
	settings  Settings
	logger    logger.ILogger
}

// NewQueryExecutor wires the single-plugin query pipeline. audit may be nil.
func NewQueryExecutor(r Retriever, evaluator TreeEvaluator, provider llm.LLMProvider, audit AuditWriter, settings Settings, log logger.ILogger) *QueryExecutor {
	return &QueryExecutor{
		retriever: r,
		evaluator: evaluator,
		gen:       generator{provider: provider, policy: settings.Policy, options: settings.Generation},
		audit:     audit,
		settings:  settings,
		logger:    log,
	}
}

// ValidateQuery rejects empty and oversized queries.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return engineerr.Validation(opQuery, "query is empty")
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return engineerr.Validation(opQuery, "query has %d characters, limit is %d", n, MaxQueryLength)
	}
	return nil
}

func validateProfile(op string, p *Profile) error {
	if p == nil || p.Plugin == nil {
		return engineerr.AccessDenied(op, "plugin is not resolved")
	}
	if !p.Plugin.IsActive {
		return engineerr.AccessDenied(op, "plugin %q is not active", p.Plugin.Slug)
	}
	return nil
}

func (q *QueryExecutor) Run(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	return q.run(ctx, req, nil)
}

// RunStream emits delta events while generating, then citations, decision_path
// and result. The caller sends the terminal event.
func (q *QueryExecutor) RunStream(ctx context.Context, req QueryRequest, sink stream.Sink) (*QueryResult, error) {
	return q.run(ctx, req, sink)
}

func (q *QueryExecutor) run(ctx context.Context, req QueryRequest, sink stream.Sink) (*QueryResult, error) {
	if err := validateProfile(opQuery, req.Profile); err != nil {
		return nil, err
	}
	if err := ValidateQuery(req.Query); err != nil {
		return nil, err
	}

	plugin := req.Profile.Plugin
	ctx, span := tracer.Start(ctx, opQuery)
	defer span.End()
	span.SetAttributes(attribute.String("plugin.slug", plugin.Slug))

	start := time.Now()
	res, err := q.execute(ctx, req, sink)
	if err != nil {
		span.RecordError(err)
		q.record(ctx, req, nil, start, err)
		return nil, err
	}
	res.LatencyMs = elapsedMs(start)
	res.AuditId = q.record(ctx, req, res, start, nil)

	if err := q.emitResult(ctx, sink, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (q *QueryExecutor) execute(ctx context.Context, req QueryRequest, sink stream.Sink) (*QueryResult, error) {
	plugin := req.Profile.Plugin

	chunks, err := q.retriever.Retrieve(ctx, plugin.Id, req.Query, q.settings.retrieval(req.Retrieval))
	if err != nil {
		return nil, failure(ctx, engineerr.KindRetrieval, opQuery, err)
	}

	var outcome *decision.Outcome
	if tree := activeTree(req.Profile); tree != nil {
		_, treeSpan := tracer.Start(ctx, "executor.evaluateTree")
		outcome, err = q.evaluator.Evaluate(tree, decision.Input{Text: req.Query, Fields: req.Fields})
		treeSpan.End()
		if err != nil {
			return nil, failure(ctx, engineerr.KindTreeEvaluation, opQuery, err)
		}
	}

	messages := prompt.NewContextualBuilder(plugin, req.Query, chunks, outcome, req.History).
		WithInstructions(req.Instructions...).
		Messages()

	answer, err := q.gen.generate(ctx, messages, sink, nil)
	if err != nil {
		return nil, failure(ctx, engineerr.KindGeneration, opQuery, err)
	}

	res := &QueryResult{PluginSlug: plugin.Slug, Retrieved: chunks}
	report := citation.Validate(answer, len(chunks))
	if !report.Satisfied(plugin.CitationMode) {
		q.logger.Warn("QUERY_EXECUTOR", "Answer failed citation check, regenerating", map[string]interface{}{
			"plugin":  plugin.Slug,
			"gap":     report.Gap(),
			"invalid": report.Invalid,
		})
		if err := stream.Emit(ctx, sink, stream.KindReset, Reset{Reason: report.Gap()}); err != nil {
			return nil, err
		}
		corrective := append(append([]llm.Message{}, messages...),
			llm.Message{Role: llm.RoleAssistant, Content: answer},
			llm.Message{Role: llm.RoleUser, Content: report.Corrective(len(chunks))},
		)
		answer, err = q.gen.generate(ctx, corrective, sink, nil)
		if err != nil {
			return nil, failure(ctx, engineerr.KindGeneration, opQuery, err)
		}
		res.Retries = 1
		report = citation.Validate(answer, len(chunks))
		if !report.Satisfied(plugin.CitationMode) {
			res.CitationGap = true
			res.GapDescription = report.Gap()
		}
	}

	res.Answer = answer
	res.Citations = citations(plugin.CitationMode, report, chunks)
	res.Confidence = scoreConfidence(plugin.CitationMode, report, chunks, outcome)
	if res.CitationGap {
		res.Confidence = entity.ConfidenceLow
	}
	if outcome != nil {
		res.DecisionPath = outcome.Path
		res.Recommendation = outcome.Action
	}
	if res.DecisionPath == nil {
		res.DecisionPath = []entity.DecisionStep{}
	}
	return res, nil
}

// citations lists what the answer cites; uncited answers outside mandatory mode
// list every excerpt they were given.
func citations(mode entity.CitationMode, report citation.Report, chunks []*entity.RetrievedChunk) []entity.CitationEntry {
	if mode == entity.CitationModeMandatory || len(report.Valid) > 0 {
		return citation.Collect(report, chunks)
	}
	return citation.All(chunks)
}

func (q *QueryExecutor) emitResult(ctx context.Context, sink stream.Sink, res *QueryResult) error {
	if sink == nil {
		return nil
	}
	if err := stream.Emit(ctx, sink, stream.KindCitations, res.Citations); err != nil {
		return err
	}
	if err := stream.Emit(ctx, sink, stream.KindDecisionPath, res.DecisionPath); err != nil {
		return err
	}
	return stream.Emit(ctx, sink, stream.KindResult, res)
}

// record writes the audit entry. Nothing is written once ctx is cancelled, and a
// failed write is logged without failing the run.
func (q *QueryExecutor) record(ctx context.Context, req QueryRequest, res *QueryResult, start time.Time, runErr error) uuid.UUID {
	if q.audit == nil || req.SkipAudit || ctx.Err() != nil {
		return uuid.Nil
	}

	entry := &entity.QueryLog{
		Id:        uuid.New(),
		PluginId:  req.Profile.Plugin.Id,
		CallerId:  req.CallerId,
		Query:     req.Query,
		LatencyMs: elapsedMs(start),
		Status:    entity.AuditSuccess,
		CreatedAt: time.Now(),
	}
	if res != nil {
		entry.Answer = res.Answer
		entry.Citations = res.Citations
		entry.DecisionPath = res.DecisionPath
		entry.Confidence = res.Confidence
		entry.CitationGap = res.GapDescription
	}
	if runErr != nil {
		entry.Status = entity.AuditError
		entry.ErrorKind = string(engineerr.KindOf(runErr))
		entry.ErrorMessage = runErr.Error()
	}

	if err := q.audit.WriteQuery(ctx, entry); err != nil {
		q.logger.Error("QUERY_EXECUTOR", "Failed to write query audit", map[string]interface{}{
			"plugin": req.Profile.Plugin.Slug,
			"error":  err.Error(),
		})
		return uuid.Nil
	}
	return entry.Id
}
