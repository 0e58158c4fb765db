package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"synagogue/internal/model"
)

// SynagogueRepository defines synagogue persistence operations.
type SynagogueRepository interface {
	Create(ctx context.Context, synagogue *model.Synagogue) error
	Update(ctx context.Context, synagogue *model.Synagogue) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Synagogue, error)
	List(ctx context.Context) ([]model.Synagogue, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type synagogueRepository struct {
	db *gorm.DB
}

// NewSynagogueRepository creates a new synagogue repository.
func NewSynagogueRepository(db *gorm.DB) SynagogueRepository {
	return &synagogueRepository{db: db}
}

func (r *synagogueRepository) Create(ctx context.Context, synagogue *model.Synagogue) error {
	return r.db.WithContext(ctx).Create(synagogue).Error
}

func (r *synagogueRepository) Update(ctx context.Context, synagogue *model.Synagogue) error {
	return r.db.WithContext(ctx).Save(synagogue).Error
}

func (r *synagogueRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Synagogue, error) {
	var synagogue model.Synagogue
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&synagogue).Error; err != nil {
		return nil, err
	}
	return &synagogue, nil
}

func (r *synagogueRepository) List(ctx context.Context) ([]model.Synagogue, error) {
	var synagogues []model.Synagogue
	if err := r.db.WithContext(ctx).Order("name").Find(&synagogues).Error; err != nil {
		return nil, err
	}
	return synagogues, nil
}

func (r *synagogueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Synagogue{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
