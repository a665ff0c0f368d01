package service

import (
	"context"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/rag/collab"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
)

const opCollaboration = "service.Collaboration"

type ICollaborationService interface {
	// Prepare validates the request and resolves every expert up front.
	Prepare(ctx context.Context, callerId *uuid.UUID, req *dto.CollaborationRequest) (collab.Config, error)
	Run(ctx context.Context, cfg collab.Config) (*collab.Result, error)
	Stream(ctx context.Context, cfg collab.Config, sink stream.Sink) error
	Get(ctx context.Context, id uuid.UUID) (*dto.CollaborationSessionResponse, error)
}

type collaborationService struct {
	uowFactory   unitofwork.RepositoryFactory
	profiles     IProfileService
	orchestrator *collab.Orchestrator
}

func NewCollaborationService(uowFactory unitofwork.RepositoryFactory, profiles IProfileService, orchestrator *collab.Orchestrator) ICollaborationService {
	return &collaborationService{uowFactory: uowFactory, profiles: profiles, orchestrator: orchestrator}
}

func (s *collaborationService) Prepare(ctx context.Context, callerId *uuid.UUID, req *dto.CollaborationRequest) (collab.Config, error) {
	cfg, err := collab.Validate(collab.Config{
		Experts:   req.Experts,
		Query:     req.Query,
		Mode:      entity.CollaborationMode(req.Mode),
		MaxRounds: req.MaxRounds,
		CallerId:  callerId,
	})
	if err != nil {
		return cfg, err
	}
	for _, slug := range cfg.Experts {
		if _, err := s.profiles.Resolve(ctx, slug); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (s *collaborationService) Run(ctx context.Context, cfg collab.Config) (*collab.Result, error) {
	return s.orchestrator.Run(ctx, cfg)
}

func (s *collaborationService) Stream(ctx context.Context, cfg collab.Config, sink stream.Sink) error {
	_, err := s.orchestrator.RunStream(ctx, cfg, sink)
	return err
}

func (s *collaborationService) Get(ctx context.Context, id uuid.UUID) (*dto.CollaborationSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.CollaborationRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, engineerr.AccessDenied(opCollaboration, "collaboration session %s not found", id)
	}
	return &dto.CollaborationSessionResponse{
		SessionId: session.Id,
		Experts:   session.Experts,
		Query:     session.Query,
		Mode:      session.Mode,
		MaxRounds: session.MaxRounds,
		Rounds:    session.Rounds,
		Consensus: session.Consensus,
		Status:    session.Status,
		Error:     session.Error,
	}, nil
}

// expertRunner answers one expert turn with the single-plugin query pipeline.
// The session is the audit record, so expert calls skip the query log.
type expertRunner struct {
	profiles IProfileService
	query    *executor.QueryExecutor
}

func NewExpertRunner(profiles IProfileService, query *executor.QueryExecutor) collab.ExpertRunner {
	return &expertRunner{profiles: profiles, query: query}
}

func (r *expertRunner) Ask(ctx context.Context, req collab.ExpertRequest) (*collab.ExpertReply, error) {
	profile, err := r.profiles.Resolve(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	res, err := r.query.Run(ctx, executor.QueryRequest{
		Profile:      profile,
		Query:        req.Query,
		Instructions: req.Instructions,
		SkipAudit:    true,
	})
	if err != nil {
		return nil, err
	}
	return &collab.ExpertReply{
		Domain:     profile.Plugin.Domain,
		Answer:     res.Answer,
		Citations:  res.Citations,
		Confidence: res.Confidence,
	}, nil
}
