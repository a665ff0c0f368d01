package implementation

import (
	"context"
	"errors"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/mapper"
	"ai-plugin-engine/internal/model"
	"ai-plugin-engine/internal/repository/contract"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

type PluginRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PluginMapper
}

func NewPluginRepository(db *gorm.DB) contract.PluginRepository {
	return &PluginRepositoryImpl{db: db, mapper: mapper.NewPluginMapper()}
}

func (r *PluginRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plugin, error) {
	var m model.Plugin
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PluginRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plugin, error) {
	var models []*model.Plugin
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Plugin, len(models))
	for i, m := range models {
		out[i] = r.mapper.ToEntity(m)
	}
	return out, nil
}

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{db: db, mapper: mapper.NewDocumentMapper()}
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) MarkIngested(ctx context.Context, id uuid.UUID, chunkCount int) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"chunk_count": chunkCount, "ingested_at": now}).Error
}

type DecisionTreeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DecisionTreeMapper
}

func NewDecisionTreeRepository(db *gorm.DB) contract.DecisionTreeRepository {
	return &DecisionTreeRepositoryImpl{db: db, mapper: mapper.NewDecisionTreeMapper()}
}

// FindActive takes the most recently updated active tree if several are
// flagged active.
func (r *DecisionTreeRepositoryImpl) FindActive(ctx context.Context, pluginId uuid.UUID) (*entity.DecisionTree, error) {
	var m model.DecisionTree
	err := applySpecifications(r.db.WithContext(ctx),
		specification.ByPluginID{PluginID: pluginId},
		specification.ActiveOnly{},
		specification.OrderBy{Field: "updated_at", Desc: true},
	).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}
