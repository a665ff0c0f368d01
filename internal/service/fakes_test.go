package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/contract"
	"ai-plugin-engine/internal/repository/specification"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/events"

	"github.com/google/uuid"
)

// memState is one snapshot of the fake database.
type memState struct {
	plugins    map[uuid.UUID]*entity.Plugin
	documents  map[uuid.UUID]*entity.Document
	trees      map[uuid.UUID]*entity.DecisionTree
	chunks     map[uuid.UUID][]*entity.Chunk
	sessions   map[uuid.UUID]*entity.CollaborationSession
	queryLogs  []*entity.QueryLog
	reviewLogs []*entity.ReviewLog
}

func (s *memState) clone() *memState {
	c := &memState{
		plugins:    make(map[uuid.UUID]*entity.Plugin, len(s.plugins)),
		documents:  make(map[uuid.UUID]*entity.Document, len(s.documents)),
		trees:      make(map[uuid.UUID]*entity.DecisionTree, len(s.trees)),
		chunks:     make(map[uuid.UUID][]*entity.Chunk, len(s.chunks)),
		sessions:   make(map[uuid.UUID]*entity.CollaborationSession, len(s.sessions)),
		queryLogs:  append([]*entity.QueryLog(nil), s.queryLogs...),
		reviewLogs: append([]*entity.ReviewLog(nil), s.reviewLogs...),
	}
	for k, v := range s.plugins {
		c.plugins[k] = v
	}
	for k, v := range s.documents {
		d := *v
		c.documents[k] = &d
	}
	for k, v := range s.trees {
		c.trees[k] = v
	}
	for k, v := range s.chunks {
		c.chunks[k] = append([]*entity.Chunk(nil), v...)
	}
	for k, v := range s.sessions {
		sess := *v
		c.sessions[k] = &sess
	}
	return c
}

// memDB is an in-memory RepositoryFactory. Writes inside Begin/Commit are
// staged on a copy and only become visible on Commit.
type memDB struct {
	mu    sync.Mutex
	state *memState

	failCreateBulk error
	failUpdate     error
	lookups        int
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		plugins:   map[uuid.UUID]*entity.Plugin{},
		documents: map[uuid.UUID]*entity.Document{},
		trees:     map[uuid.UUID]*entity.DecisionTree{},
		chunks:    map[uuid.UUID][]*entity.Chunk{},
		sessions:  map[uuid.UUID]*entity.CollaborationSession{},
	}}
}

func (db *memDB) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUow{db: db}
}

func (db *memDB) addPlugin(p *entity.Plugin) {
	db.state.plugins[p.Id] = p
}

func (db *memDB) addDocument(d *entity.Document) {
	db.state.documents[d.Id] = d
}

func (db *memDB) chunksOf(documentId uuid.UUID) []*entity.Chunk {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.chunks[documentId]
}

func (db *memDB) document(id uuid.UUID) *entity.Document {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.documents[id]
}

func (db *memDB) session(id uuid.UUID) *entity.CollaborationSession {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.sessions[id]
}

type memUow struct {
	db *memDB
	tx *memState
}

func (u *memUow) Begin(ctx context.Context) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	u.tx = u.db.state.clone()
	return nil
}

func (u *memUow) Commit() error {
	if u.tx == nil {
		return errors.New("no transaction")
	}
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	u.db.state = u.tx
	u.tx = nil
	return nil
}

func (u *memUow) Rollback() error {
	u.tx = nil
	return nil
}

// with runs fn against the staged copy or, outside a transaction, the live state.
func (u *memUow) with(fn func(s *memState) error) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	if u.tx != nil {
		return fn(u.tx)
	}
	return fn(u.db.state)
}

func (u *memUow) PluginRepository() contract.PluginRepository             { return memPlugins{u} }
func (u *memUow) DocumentRepository() contract.DocumentRepository         { return memDocuments{u} }
func (u *memUow) DecisionTreeRepository() contract.DecisionTreeRepository { return memTrees{u} }
func (u *memUow) ChunkRepository() contract.ChunkRepository               { return memChunks{u} }
func (u *memUow) AuditRepository() contract.AuditRepository               { return memAudit{u} }
func (u *memUow) CollaborationRepository() contract.CollaborationRepository {
	return memSessions{u}
}

type memPlugins struct{ u *memUow }

func (r memPlugins) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plugin, error) {
	var found *entity.Plugin
	err := r.u.with(func(s *memState) error {
		r.u.db.lookups++
		for _, p := range s.plugins {
			if matchesPlugin(p, specs) {
				found = p
			}
		}
		return nil
	})
	return found, err
}

func (r memPlugins) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plugin, error) {
	var out []*entity.Plugin
	err := r.u.with(func(s *memState) error {
		for _, p := range s.plugins {
			if matchesPlugin(p, specs) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func matchesPlugin(p *entity.Plugin, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.BySlug:
			if p.Slug != sp.Slug {
				return false
			}
		case specification.ByID:
			if p.Id != sp.ID {
				return false
			}
		case specification.ActiveOnly:
			if !p.IsActive {
				return false
			}
		}
	}
	return true
}

type memDocuments struct{ u *memUow }

func (r memDocuments) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var found *entity.Document
	err := r.u.with(func(s *memState) error {
		for _, spec := range specs {
			if byId, ok := spec.(specification.ByID); ok {
				found = s.documents[byId.ID]
			}
		}
		return nil
	})
	return found, err
}

func (r memDocuments) MarkIngested(ctx context.Context, id uuid.UUID, chunkCount int) error {
	return r.u.with(func(s *memState) error {
		doc, ok := s.documents[id]
		if !ok {
			return errors.New("document not found")
		}
		now := time.Now()
		doc.ChunkCount = chunkCount
		doc.IngestedAt = &now
		return nil
	})
}

type memTrees struct{ u *memUow }

func (r memTrees) FindActive(ctx context.Context, pluginId uuid.UUID) (*entity.DecisionTree, error) {
	var found *entity.DecisionTree
	err := r.u.with(func(s *memState) error {
		for _, t := range s.trees {
			if t.PluginId == pluginId && t.IsActive {
				found = t
			}
		}
		return nil
	})
	return found, err
}

type memChunks struct{ u *memUow }

func (r memChunks) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	return r.u.with(func(s *memState) error {
		if r.u.db.failCreateBulk != nil {
			return r.u.db.failCreateBulk
		}
		for _, c := range chunks {
			s.chunks[c.DocumentId] = append(s.chunks[c.DocumentId], c)
		}
		return nil
	})
}

func (r memChunks) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) (int64, error) {
	var n int64
	err := r.u.with(func(s *memState) error {
		n = int64(len(s.chunks[documentId]))
		delete(s.chunks, documentId)
		return nil
	})
	return n, err
}

func (r memChunks) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	var out []*entity.Chunk
	err := r.u.with(func(s *memState) error {
		for _, cs := range s.chunks {
			out = append(out, cs...)
		}
		return nil
	})
	return out, err
}

func (r memChunks) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func (r memChunks) SearchByPlugin(ctx context.Context, pluginId uuid.UUID, vector []float32, limit int, threshold float64) ([]*entity.RetrievedChunk, error) {
	return nil, nil
}

type memAudit struct{ u *memUow }

func (r memAudit) CreateQueryLog(ctx context.Context, log *entity.QueryLog) error {
	return r.u.with(func(s *memState) error {
		s.queryLogs = append(s.queryLogs, log)
		return nil
	})
}

func (r memAudit) CreateReviewLog(ctx context.Context, log *entity.ReviewLog) error {
	return r.u.with(func(s *memState) error {
		s.reviewLogs = append(s.reviewLogs, log)
		return nil
	})
}

func (r memAudit) FindQueryLogs(ctx context.Context, specs ...specification.Specification) ([]*entity.QueryLog, error) {
	var out []*entity.QueryLog
	err := r.u.with(func(s *memState) error {
		out = append(out, s.queryLogs...)
		return nil
	})
	return out, err
}

type memSessions struct{ u *memUow }

func (r memSessions) Create(ctx context.Context, session *entity.CollaborationSession) error {
	return r.u.with(func(s *memState) error {
		copied := *session
		s.sessions[session.Id] = &copied
		return nil
	})
}

func (r memSessions) FindById(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error) {
	var found *entity.CollaborationSession
	err := r.u.with(func(s *memState) error {
		if sess, ok := s.sessions[id]; ok {
			copied := *sess
			found = &copied
		}
		return nil
	})
	return found, err
}

func (r memSessions) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error) {
	return r.FindById(ctx, id)
}

func (r memSessions) Update(ctx context.Context, session *entity.CollaborationSession) error {
	return r.u.with(func(s *memState) error {
		if r.u.db.failUpdate != nil {
			return r.u.db.failUpdate
		}
		copied := *session
		s.sessions[session.Id] = &copied
		return nil
	})
}

// recordingEvents is an IEventService that remembers what was published.
type recordingEvents struct {
	mu        sync.Mutex
	ingested  []uuid.UUID
	completed []entity.SessionStatus
	queries   int
	reviews   int
}

func (e *recordingEvents) QueryCompleted(ctx context.Context, log *entity.QueryLog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries++
}

func (e *recordingEvents) ReviewCompleted(ctx context.Context, log *entity.ReviewLog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reviews++
}

func (e *recordingEvents) CollaborationCompleted(ctx context.Context, sessionId uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, status)
}

func (e *recordingEvents) DocumentIngested(ctx context.Context, doc *entity.Document, chunks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ingested = append(e.ingested, doc.Id)
}

// recordingPublisher is an events.Publisher.
type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}
