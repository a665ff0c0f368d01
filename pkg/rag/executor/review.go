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
	"golang.org/x/sync/errgroup"
)

const (
	opReview = "executor.Review"

	// DefaultReviewConcurrency bounds segments reviewed at once by Run.
	DefaultReviewConcurrency = 4

	categoryReviewGap    = "review-gap"
	categoryDecisionTree = "decision-tree"
)

type ReviewRequest struct {
	Profile   *Profile
	Document  string
	Title     string
	CallerId  *uuid.UUID
	Retrieval retriever.Options
	Fields    map[string]string
	SkipAudit bool
}

type ReviewResult struct {
	AuditId     uuid.UUID                 `json:"auditId,omitempty"`
	PluginSlug  string                    `json:"pluginSlug"`
	Title       string                    `json:"title"`
	Segments    int                       `json:"segments"`
	Annotations []entity.ReviewAnnotation `json:"annotations"`
	Summary     entity.ReviewSummary      `json:"summary"`
	LatencyMs   int64                     `json:"latencyMs"`
}

type ReviewExecutor struct {
	retriever   Retriever
	evaluator   TreeEvaluator
	gen         generator
	audit       AuditWriter
	settings    Settings
	concurrency int
	segmentSize int
	logger      logger.ILogger
}

func NewReviewExecutor(r Retriever, evaluator TreeEvaluator, provider llm.LLMProvider, audit AuditWriter, settings Settings, log logger.ILogger) *ReviewExecutor {
	re := &ReviewExecutor{
		retriever:   r,
		evaluator:   evaluator,
		gen:         generator{provider: provider, policy: settings.Policy, options: settings.Generation},
		audit:       audit,
		settings:    settings,
		concurrency: DefaultReviewConcurrency,
		segmentSize: DefaultSegmentSize,
		logger:      log,
	}
	if settings.ReviewConcurrency > 0 {
		re.concurrency = settings.ReviewConcurrency
	}
	if settings.SegmentSize > 0 {
		re.segmentSize = settings.SegmentSize
	}
	return re
}

// ValidateDocument rejects empty and oversized documents.
func ValidateDocument(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return engineerr.Validation(opReview, "document is empty")
	}
	if n := utf8.RuneCountInString(doc); n > MaxDocumentLength {
		return engineerr.Validation(opReview, "document has %d characters, limit is %d", n, MaxDocumentLength)
	}
	return nil
}

// Run reviews segments concurrently and returns annotations in segment order.
func (r *ReviewExecutor) Run(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	return r.run(ctx, req, nil)
}

// RunStream reviews segments one after another, streaming generation deltas
// tagged with the segment and each segment's annotations as soon as it is done,
// then the summary and result.
func (r *ReviewExecutor) RunStream(ctx context.Context, req ReviewRequest, sink stream.Sink) (*ReviewResult, error) {
	return r.run(ctx, req, sink)
}

func (r *ReviewExecutor) run(ctx context.Context, req ReviewRequest, sink stream.Sink) (*ReviewResult, error) {
	if err := validateProfile(opReview, req.Profile); err != nil {
		return nil, err
	}
	if err := ValidateDocument(req.Document); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, opReview)
	defer span.End()

	start := time.Now()
	segments := SegmentDocument(req.Document, r.segmentSize)
	span.SetAttributes(
		attribute.String("plugin.slug", req.Profile.Plugin.Slug),
		attribute.Int("review.segments", len(segments)),
	)

	var (
		annotations []entity.ReviewAnnotation
		err         error
	)
	if sink == nil {
		annotations, err = r.reviewConcurrently(ctx, req, segments)
	} else {
		annotations, err = r.reviewInOrder(ctx, req, segments, sink)
	}
	if err != nil {
		span.RecordError(err)
		r.record(ctx, req, nil, start, err)
		return nil, err
	}

	res := &ReviewResult{
		PluginSlug:  req.Profile.Plugin.Slug,
		Title:       req.Title,
		Segments:    len(segments),
		Annotations: annotations,
		Summary:     entity.Summarize(annotations),
		LatencyMs:   elapsedMs(start),
	}
	res.AuditId = r.record(ctx, req, res, start, nil)

	if sink != nil {
		if err := stream.Emit(ctx, sink, stream.KindSummary, res.Summary); err != nil {
			return nil, err
		}
		if err := stream.Emit(ctx, sink, stream.KindResult, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *ReviewExecutor) reviewConcurrently(ctx context.Context, req ReviewRequest, segments []DocumentSegment) ([]entity.ReviewAnnotation, error) {
	reviews := make([]segmentReview, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			sr, err := r.reviewSegment(gctx, req, seg, nil)
			if err != nil {
				return err
			}
			reviews[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	c := newCollector()
	for _, sr := range reviews {
		c.add(sr)
	}
	return c.annotations, nil
}

func (r *ReviewExecutor) reviewInOrder(ctx context.Context, req ReviewRequest, segments []DocumentSegment, sink stream.Sink) ([]entity.ReviewAnnotation, error) {
	c := newCollector()
	for _, seg := range segments {
		sr, err := r.reviewSegment(ctx, req, seg, sink)
		if err != nil {
			return nil, err
		}
		for _, a := range c.add(sr) {
			if err := stream.Emit(ctx, sink, stream.KindAnnotation, a); err != nil {
				return nil, err
			}
		}
	}
	return c.annotations, nil
}

// segmentReview is the outcome of one segment. action is the tree
// recommendation reached for it, reported once per review.
type segmentReview struct {
	annotations []entity.ReviewAnnotation
	actionId    string
	action      *entity.ReviewAnnotation
}

type collector struct {
	annotations []entity.ReviewAnnotation
	actions     map[string]bool
}

func newCollector() *collector {
	return &collector{annotations: []entity.ReviewAnnotation{}, actions: map[string]bool{}}
}

// add appends a segment's annotations and returns the ones it added.
func (c *collector) add(sr segmentReview) []entity.ReviewAnnotation {
	from := len(c.annotations)
	if sr.action != nil && !c.actions[sr.actionId] {
		c.actions[sr.actionId] = true
		c.annotations = append(c.annotations, *sr.action)
	}
	c.annotations = append(c.annotations, sr.annotations...)
	return c.annotations[from:]
}

func (r *ReviewExecutor) reviewSegment(ctx context.Context, req ReviewRequest, seg DocumentSegment, sink stream.Sink) (segmentReview, error) {
	plugin := req.Profile.Plugin
	index := seg.Index

	chunks, err := r.retriever.Retrieve(ctx, plugin.Id, seg.Text, r.settings.retrieval(req.Retrieval))
	if err != nil {
		return segmentReview{}, failure(ctx, engineerr.KindRetrieval, opReview, err)
	}

	var outcome *decision.Outcome
	if tree := activeTree(req.Profile); tree != nil {
		outcome, err = r.evaluator.Evaluate(tree, decision.Input{Text: seg.Text, Fields: req.Fields})
		if err != nil {
			return segmentReview{}, failure(ctx, engineerr.KindTreeEvaluation, opReview, err)
		}
	}

	messages := prompt.NewReviewBuilder(plugin, req.Title, seg.Text, seg.LineStart, seg.LineEnd, chunks, outcome).Messages()
	reply, err := r.gen.generate(ctx, messages, sink, &index)
	if err != nil {
		return segmentReview{}, failure(ctx, engineerr.KindGeneration, opReview, err)
	}

	raws, parseErr := parseAnnotations(reply)
	if parseErr != nil {
		r.logger.Warn("REVIEW_EXECUTOR", "Unparsable annotations, regenerating", map[string]interface{}{
			"plugin":  plugin.Slug,
			"segment": seg.Index,
			"error":   parseErr.Error(),
		})
		if err := stream.Emit(ctx, sink, stream.KindReset, Reset{SegmentIndex: &index, Reason: "annotations were not valid JSON"}); err != nil {
			return segmentReview{}, err
		}
		corrective := append(append([]llm.Message{}, messages...),
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleUser, Content: "Your previous reply was not valid JSON. Reply again with JSON only, no prose and no code fence, in exactly this shape:\n" + prompt.AnnotationFormat},
		)
		reply, err = r.gen.generate(ctx, corrective, sink, &index)
		if err != nil {
			return segmentReview{}, failure(ctx, engineerr.KindGeneration, opReview, err)
		}
		raws, parseErr = parseAnnotations(reply)
	}

	var sr segmentReview
	if parseErr != nil {
		sr.annotations = []entity.ReviewAnnotation{{
			SegmentIndex: seg.Index,
			LineStart:    seg.LineStart,
			LineEnd:      seg.LineEnd,
			Severity:     entity.AnnotationInfo,
			Category:     categoryReviewGap,
			Issue:        "The review of these lines could not be read, so they were not checked.",
			SuggestedFix: "Review these lines manually.",
			Citations:    []entity.CitationEntry{},
			Confidence:   entity.ConfidenceLow,
			CitationGap:  true,
		}}
	} else {
		for _, raw := range raws {
			sr.annotations = append(sr.annotations, annotate(plugin.CitationMode, seg, raw, chunks))
		}
	}

	if outcome != nil && outcome.Terminal && outcome.Action.Severity != entity.SeverityInfo {
		sr.actionId = outcome.Action.Id
		sr.action = &entity.ReviewAnnotation{
			SegmentIndex: seg.Index,
			LineStart:    seg.LineStart,
			LineEnd:      seg.LineEnd,
			Severity:     actionSeverity(outcome.Action.Severity),
			Category:     categoryDecisionTree,
			Issue:        outcome.Action.Recommendation,
			SuggestedFix: outcome.Action.SourceHint,
			Citations:    []entity.CitationEntry{},
			Confidence:   entity.ConfidenceHigh,
		}
	}
	return sr, nil
}

// annotate resolves the model's excerpt numbers and grades the annotation by
// the best cited similarity.
func annotate(mode entity.CitationMode, seg DocumentSegment, raw rawAnnotation, chunks []*entity.RetrievedChunk) entity.ReviewAnnotation {
	a := entity.ReviewAnnotation{
		SegmentIndex: seg.Index,
		LineStart:    seg.LineStart,
		LineEnd:      seg.LineEnd,
		Severity:     severityOf(raw.Severity),
		Category:     strings.TrimSpace(raw.Category),
		Issue:        strings.TrimSpace(raw.Issue),
		SuggestedFix: strings.TrimSpace(raw.SuggestedFix),
		Citations:    []entity.CitationEntry{},
	}
	if a.Category == "" {
		a.Category = "general"
	}

	seen := map[int]bool{}
	invalid := false
	best := 0.0
	for _, n := range raw.Citations {
		if n < 1 || n > len(chunks) {
			invalid = true
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		a.Citations = append(a.Citations, citation.Entry(chunks[n-1], n))
		if chunks[n-1].Similarity > best {
			best = chunks[n-1].Similarity
		}
	}

	switch {
	case len(a.Citations) > 0:
		a.Confidence = bySimilarity(best)
	case mode == entity.CitationModeMandatory:
		a.Confidence = entity.ConfidenceLow
		a.CitationGap = true
	case len(chunks) > 0:
		a.Confidence = entity.ConfidenceMedium
	default:
		a.Confidence = entity.ConfidenceLow
	}
	if invalid {
		a.Confidence = a.Confidence.Lower()
		if mode == entity.CitationModeMandatory {
			a.CitationGap = true
		}
	}
	return a
}

func (r *ReviewExecutor) record(ctx context.Context, req ReviewRequest, res *ReviewResult, start time.Time, runErr error) uuid.UUID {
	if r.audit == nil || req.SkipAudit || ctx.Err() != nil {
		return uuid.Nil
	}

	entry := &entity.ReviewLog{
		Id:           uuid.New(),
		PluginId:     req.Profile.Plugin.Id,
		CallerId:     req.CallerId,
		Title:        req.Title,
		DocumentSize: utf8.RuneCountInString(req.Document),
		LatencyMs:    elapsedMs(start),
		Status:       entity.AuditSuccess,
		CreatedAt:    time.Now(),
	}
	if res != nil {
		entry.Annotations = res.Annotations
		entry.Summary = res.Summary
	}
	if runErr != nil {
		entry.Status = entity.AuditError
		entry.ErrorKind = string(engineerr.KindOf(runErr))
		entry.ErrorMessage = runErr.Error()
	}

	if err := r.audit.WriteReview(ctx, entry); err != nil {
		r.logger.Error("REVIEW_EXECUTOR", "Failed to write review audit", map[string]interface{}{
			"plugin": req.Profile.Plugin.Slug,
			"error":  err.Error(),
		})
		return uuid.Nil
	}
	return entry.Id
}
