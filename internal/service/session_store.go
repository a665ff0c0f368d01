package service

import (
	"context"
	"fmt"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/rag/collab"

	"github.com/google/uuid"
)

// sessionStore keeps collaboration sessions in the collaboration_sessions
// table. Rounds are appended under a row lock.
type sessionStore struct {
	uowFactory unitofwork.RepositoryFactory
	events     IEventService
}

func NewSessionStore(uowFactory unitofwork.RepositoryFactory, events IEventService) collab.SessionStore {
	return &sessionStore{uowFactory: uowFactory, events: events}
}

func (s *sessionStore) Create(ctx context.Context, session *entity.CollaborationSession) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.CollaborationRepository().Create(ctx, session)
}

// update applies fn to the locked session row and writes it back.
func (s *sessionStore) update(ctx context.Context, id uuid.UUID, fn func(*entity.CollaborationSession)) (err error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	repo := uow.CollaborationRepository()
	session, err := repo.FindForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("collaboration session %s not found", id)
	}

	fn(session)
	now := time.Now().UTC()
	session.UpdatedAt = &now
	if err = repo.Update(ctx, session); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *sessionStore) AppendRound(ctx context.Context, id uuid.UUID, round entity.CollaborationRound) error {
	return s.update(ctx, id, func(session *entity.CollaborationSession) {
		session.Rounds = append(session.Rounds, round)
		session.Status = entity.SessionDeliberating
	})
}

func (s *sessionStore) Finalize(ctx context.Context, id uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData, reason string) error {
	err := s.update(ctx, id, func(session *entity.CollaborationSession) {
		session.Status = status
		session.Consensus = consensus
		session.Error = reason
	})
	if err != nil {
		return err
	}
	s.events.CollaborationCompleted(ctx, id, status, consensus)
	return nil
}
