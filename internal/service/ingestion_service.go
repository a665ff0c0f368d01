package service

import (
	"context"
	"fmt"
	"time"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/internal/repository/specification"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/rag/chunker"
	"ai-plugin-engine/pkg/rag/engineerr"

	"github.com/google/uuid"
)

const opIngest = "service.Ingest"

// Locker serializes work on one document across replicas.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type IIngestionService interface {
	// Ingest replaces the document's chunks with a fresh chunk-and-embed pass.
	// Nothing changes unless every chunk was embedded.
	Ingest(ctx context.Context, documentId uuid.UUID) (*dto.IngestResponse, error)
	DeleteChunks(ctx context.Context, documentId uuid.UUID) (*dto.DeleteChunksResponse, error)
}

type ingestionService struct {
	uowFactory unitofwork.RepositoryFactory
	chunker    *chunker.Chunker
	embedder   DocumentEmbedder
	locker     Locker
	lockTTL    time.Duration
	events     IEventService
	logger     logger.ILogger
}

func NewIngestionService(
	uowFactory unitofwork.RepositoryFactory,
	chunker *chunker.Chunker,
	embedder DocumentEmbedder,
	locker Locker,
	lockTTL time.Duration,
	events IEventService,
	log logger.ILogger,
) IIngestionService {
	return &ingestionService{
		uowFactory: uowFactory,
		chunker:    chunker,
		embedder:   embedder,
		locker:     locker,
		lockTTL:    lockTTL,
		events:     events,
		logger:     log,
	}
}

func lockName(documentId uuid.UUID) string {
	return "document:" + documentId.String()
}

func (s *ingestionService) Ingest(ctx context.Context, documentId uuid.UUID) (*dto.IngestResponse, error) {
	var res *dto.IngestResponse
	err := s.locker.WithLock(ctx, lockName(documentId), s.lockTTL, func(ctx context.Context) error {
		var err error
		res, err = s.ingest(ctx, documentId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ingestionService) ingest(ctx context.Context, documentId uuid.UUID) (*dto.IngestResponse, error) {
	start := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentId, err)
	}
	if doc == nil {
		return nil, engineerr.AccessDenied(opIngest, "document %s not found", documentId)
	}

	segments := s.chunker.Split(doc.Content, chunker.Hints{FileName: doc.Name, FileType: doc.FileType})
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			s.logger.Error("INGEST", "Embedding failed, chunks left unchanged", map[string]interface{}{
				"document": documentId.String(),
				"chunks":   len(texts),
				"error":    err.Error(),
			})
			return nil, err
		}
	}

	chunks := make([]*entity.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = &entity.Chunk{
			Id:           uuid.New(),
			DocumentId:   doc.Id,
			PluginId:     doc.PluginId,
			Content:      seg.Content,
			ChunkIndex:   seg.Index,
			PageNumber:   seg.PageNumber,
			SectionTitle: seg.SectionTitle,
			Embedding:    vectors[i],
			Metadata:     map[string]string{"documentName": doc.Name},
		}
	}

	replaced, err := s.replace(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		s.logger.Warn("INGEST", "Document produced no chunks", map[string]interface{}{"document": documentId.String()})
	}
	s.logger.Info("INGEST", "Document ingested", map[string]interface{}{
		"document":   documentId.String(),
		"plugin":     doc.PluginId.String(),
		"chunks":     len(chunks),
		"replaced":   replaced,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	s.events.DocumentIngested(ctx, doc, len(chunks))

	return &dto.IngestResponse{DocumentId: doc.Id, Chunks: len(chunks), Replaced: replaced}, nil
}

// replace swaps the document's chunks in one transaction.
func (s *ingestionService) replace(ctx context.Context, doc *entity.Document, chunks []*entity.Chunk) (replaced int64, err error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	replaced, err = uow.ChunkRepository().DeleteByDocumentId(ctx, doc.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old chunks: %w", err)
	}
	if err = uow.ChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	if err = uow.DocumentRepository().MarkIngested(ctx, doc.Id, len(chunks)); err != nil {
		return 0, fmt.Errorf("failed to mark document ingested: %w", err)
	}
	if err = uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return replaced, nil
}

func (s *ingestionService) DeleteChunks(ctx context.Context, documentId uuid.UUID) (*dto.DeleteChunksResponse, error) {
	var deleted int64
	err := s.locker.WithLock(ctx, lockName(documentId), s.lockTTL, func(ctx context.Context) error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		var err error
		deleted, err = uow.ChunkRepository().DeleteByDocumentId(ctx, documentId)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete chunks of %s: %w", documentId, err)
	}
	s.logger.Info("INGEST", "Document chunks deleted", map[string]interface{}{
		"document": documentId.String(),
		"deleted":  deleted,
	})
	return &dto.DeleteChunksResponse{DocumentId: documentId, Deleted: deleted}, nil
}
