package service

import (
	"context"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/rag/retriever"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
)

// IQueryService is the single-plugin facade. Prepare* validates input and
// resolves the plugin so callers can fail before a stream is opened.
type IQueryService interface {
	PrepareQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryRequest, error)
	RunQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryResult, error)
	StreamQuery(ctx context.Context, prepared *executor.QueryRequest, sink stream.Sink) error

	PrepareReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewRequest, error)
	RunReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewResult, error)
	StreamReview(ctx context.Context, prepared *executor.ReviewRequest, sink stream.Sink) error
}

type queryService struct {
	profiles IProfileService
	query    *executor.QueryExecutor
	review   *executor.ReviewExecutor
}

func NewQueryService(profiles IProfileService, query *executor.QueryExecutor, review *executor.ReviewExecutor) IQueryService {
	return &queryService{profiles: profiles, query: query, review: review}
}

func retrievalOptions(opts *dto.RetrievalOptions) retriever.Options {
	if opts == nil {
		return retriever.Options{}
	}
	return retriever.Options{TopK: opts.TopK, Threshold: opts.Threshold}
}

func (s *queryService) PrepareQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryRequest, error) {
	if err := executor.ValidateQuery(req.Query); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return &executor.QueryRequest{
		Profile:   profile,
		Query:     req.Query,
		CallerId:  callerId,
		History:   history,
		Retrieval: retrievalOptions(req.Retrieval),
		Fields:    req.Fields,
	}, nil
}

func (s *queryService) RunQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryResult, error) {
	prepared, err := s.PrepareQuery(ctx, slug, callerId, req)
	if err != nil {
		return nil, err
	}
	return s.query.Run(ctx, *prepared)
}

func (s *queryService) StreamQuery(ctx context.Context, prepared *executor.QueryRequest, sink stream.Sink) error {
	_, err := s.query.RunStream(ctx, *prepared, sink)
	return err
}

func (s *queryService) PrepareReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewRequest, error) {
	if err := executor.ValidateDocument(req.Document); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &executor.ReviewRequest{
		Profile:   profile,
		Document:  req.Document,
		Title:     req.Title,
		CallerId:  callerId,
		Retrieval: retrievalOptions(req.Retrieval),
		Fields:    req.Fields,
	}, nil
}

func (s *queryService) RunReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewResult, error) {
	prepared, err := s.PrepareReview(ctx, slug, callerId, req)
	if err != nil {
		return nil, err
	}
	return s.review.Run(ctx, *prepared)
}

func (s *queryService) StreamReview(ctx context.Context, prepared *executor.ReviewRequest, sink stream.Sink) error {
	_, err := s.review.RunStream(ctx, *prepared, sink)
	return err
}
