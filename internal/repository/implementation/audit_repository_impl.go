package implementation

import (
	"context"
	"errors"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/mapper"
	"ai-plugin-engine/internal/model"
	"ai-plugin-engine/internal/repository/contract"
	"ai-plugin-engine/internal/repository/scope"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AuditMapper
}

func NewAuditRepository(db *gorm.DB) contract.AuditRepository {
	return &AuditRepositoryImpl{db: db, mapper: mapper.NewAuditMapper()}
}

func (r *AuditRepositoryImpl) CreateQueryLog(ctx context.Context, log *entity.QueryLog) error {
	m := r.mapper.QueryLogToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	log.Id, log.CreatedAt = m.Id, m.CreatedAt
	return nil
}

func (r *AuditRepositoryImpl) CreateReviewLog(ctx context.Context, log *entity.ReviewLog) error {
	m := r.mapper.ReviewLogToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	log.Id, log.CreatedAt = m.Id, m.CreatedAt
	return nil
}

func (r *AuditRepositoryImpl) FindQueryLogs(ctx context.Context, specs ...specification.Specification) ([]*entity.QueryLog, error) {
	var models []*model.QueryLog
	query := applySpecifications(r.db.WithContext(ctx), specs...).Scopes(scope.OrderByCreatedDesc)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.QueryLog, len(models))
	for i, m := range models {
		log, err := r.mapper.QueryLogToEntity(m)
		if err != nil {
			return nil, err
		}
		out[i] = log
	}
	return out, nil
}

type CollaborationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CollaborationMapper
}

func NewCollaborationRepository(db *gorm.DB) contract.CollaborationRepository {
	return &CollaborationRepositoryImpl{db: db, mapper: mapper.NewCollaborationMapper()}
}

func (r *CollaborationRepositoryImpl) Create(ctx context.Context, session *entity.CollaborationSession) error {
	return r.db.WithContext(ctx).Create(r.mapper.ToModel(session)).Error
}

func (r *CollaborationRepositoryImpl) find(db *gorm.DB, id uuid.UUID) (*entity.CollaborationSession, error) {
	var m model.CollaborationSession
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *CollaborationRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *CollaborationRepositoryImpl) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *CollaborationRepositoryImpl) Update(ctx context.Context, session *entity.CollaborationSession) error {
	m := r.mapper.ToModel(session)
	return r.db.WithContext(ctx).Model(&model.CollaborationSession{}).
		Where("id = ?", session.Id).
		Updates(map[string]interface{}{
			"rounds":    m.Rounds,
			"consensus": m.Consensus,
			"status":    m.Status,
			"error":     m.Error,
		}).Error
}
