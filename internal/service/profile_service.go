package service

import (
	"context"
	"fmt"

	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/internal/repository/memory"
	"ai-plugin-engine/internal/repository/specification"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/executor"
)

const opResolve = "service.ResolveProfile"

type IProfileService interface {
	// Resolve loads the plugin and its active decision tree. Unknown and
	// inactive plugins are access_denied.
	Resolve(ctx context.Context, slug string) (*executor.Profile, error)
	Invalidate(slug string)
}

type profileService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.ProfileCache
	logger     logger.ILogger
}

func NewProfileService(uowFactory unitofwork.RepositoryFactory, cache *memory.ProfileCache, log logger.ILogger) IProfileService {
	return &profileService{uowFactory: uowFactory, cache: cache, logger: log}
}

func (s *profileService) Resolve(ctx context.Context, slug string) (*executor.Profile, error) {
	if profile, ok := s.cache.Get(slug); ok {
		return profile, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plugin, err := uow.PluginRepository().FindOne(ctx, specification.BySlug{Slug: slug})
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin %q: %w", slug, err)
	}
	if plugin == nil {
		return nil, engineerr.AccessDenied(opResolve, "plugin %q not found", slug)
	}
	if !plugin.IsActive {
		return nil, engineerr.AccessDenied(opResolve, "plugin %q is not active", slug)
	}

	tree, err := uow.DecisionTreeRepository().FindActive(ctx, plugin.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision tree of %q: %w", slug, err)
	}
	if tree != nil {
		if err := decision.ValidateTree(tree); err != nil {
			s.logger.Error("PROFILE", "Active decision tree is invalid", map[string]interface{}{
				"plugin": slug,
				"tree":   tree.Id.String(),
				"error":  err.Error(),
			})
			return nil, err
		}
	}

	profile := &executor.Profile{Plugin: plugin, Tree: tree}
	s.cache.Set(slug, profile)
	return profile, nil
}

func (s *profileService) Invalidate(slug string) {
	s.cache.Invalidate(slug)
}
