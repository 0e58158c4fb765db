package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synagogue/internal/access"
	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

// SynagogueService manages synagogue locations and prayer hours.
type SynagogueService interface {
	List(ctx context.Context, actor *auth.Session) ([]model.Synagogue, error)
	Get(ctx context.Context, actor *auth.Session, id uuid.UUID) (*model.Synagogue, error)
	Create(ctx context.Context, actor *auth.Session, synagogue *model.Synagogue) (*model.Synagogue, error)
	Update(ctx context.Context, actor *auth.Session, id uuid.UUID, synagogue *model.Synagogue) (*model.Synagogue, error)
	Delete(ctx context.Context, actor *auth.Session, id uuid.UUID) error
}

type synagogueService struct {
	repo repository.SynagogueRepository
	log  *zap.Logger
}

// NewSynagogueService creates a new synagogue service.
func NewSynagogueService(repo repository.SynagogueRepository, log *zap.Logger) SynagogueService {
	return &synagogueService{repo: repo, log: log}
}

func (s *synagogueService) List(ctx context.Context, actor *auth.Session) ([]model.Synagogue, error) {
	if err := checkAccess(s.log, actor, access.RequireRole(actor, model.RoleUser)); err != nil {
		return nil, err
	}
	synagogues, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if synagogues == nil {
		synagogues = []model.Synagogue{}
	}
	return synagogues, nil
}

func (s *synagogueService) Get(ctx context.Context, actor *auth.Session, id uuid.UUID) (*model.Synagogue, error) {
	if err := checkAccess(s.log, actor, access.RequireRole(actor, model.RoleUser)); err != nil {
		return nil, err
	}
	synagogue, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrSynagogueNotFound, "find synagogue")
	}
	return synagogue, nil
}

func (s *synagogueService) Create(ctx context.Context, actor *auth.Session, synagogue *model.Synagogue) (*model.Synagogue, error) {
	if err := checkAccess(s.log, actor, access.RequireElevated(actor)); err != nil {
		return nil, err
	}
	if err := normalizeSynagogue(synagogue); err != nil {
		return nil, err
	}

	synagogue.ID = uuid.Nil
	if err := s.repo.Create(ctx, synagogue); err != nil {
		return nil, err
	}
	s.log.Info("synagogue created", zap.String("synagogue_id", synagogue.ID.String()), zap.String("actor_id", actor.UserID.String()))
	return synagogue, nil
}

func (s *synagogueService) Update(ctx context.Context, actor *auth.Session, id uuid.UUID, synagogue *model.Synagogue) (*model.Synagogue, error) {
	if err := checkAccess(s.log, actor, access.RequireElevated(actor)); err != nil {
		return nil, err
	}
	if err := normalizeSynagogue(synagogue); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrSynagogueNotFound, "find synagogue")
	}
	synagogue.ID = existing.ID
	synagogue.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, synagogue); err != nil {
		return nil, err
	}
	s.log.Info("synagogue updated", zap.String("synagogue_id", id.String()), zap.String("actor_id", actor.UserID.String()))
	return synagogue, nil
}

func (s *synagogueService) Delete(ctx context.Context, actor *auth.Session, id uuid.UUID) error {
	if err := checkAccess(s.log, actor, access.RequireRole(actor, model.RoleManager)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundAs(err, apperrors.ErrSynagogueNotFound, "delete synagogue")
	}
	s.log.Info("synagogue deleted", zap.String("synagogue_id", id.String()), zap.String("actor_id", actor.UserID.String()))
	return nil
}

func normalizeSynagogue(synagogue *model.Synagogue) error {
	synagogue.Name = strings.TrimSpace(synagogue.Name)
	if synagogue.Name == "" {
		return apperrors.Validation("NAME_REQUIRED", "synagogue name is required")
	}
	if synagogue.Prayers == nil {
		synagogue.Prayers = []model.PrayerTime{}
	}
	return nil
}
