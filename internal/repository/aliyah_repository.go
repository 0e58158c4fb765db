package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"synagogue/internal/model"
)

// ErrStaleVersion is returned by ApplyChange when the aliyah changed since it
// was read.
var ErrStaleVersion = errors.New("aliyah version is stale")

// AliyahRepository defines aliyah and payment history persistence operations.
type AliyahRepository interface {
	// Create stores the aliyah and its initial history entries atomically.
	// It fails with gorm.ErrRecordNotFound when the owner does not exist.
	Create(ctx context.Context, aliyah *model.Aliyah, entries []model.PaymentEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Aliyah, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Aliyah, error)
	// ApplyChange writes the aliyah's mutable fields if its stored version
	// still equals expectedVersion, and appends entry (when non-nil) in the
	// same transaction.
	ApplyChange(ctx context.Context, aliyah *model.Aliyah, expectedVersion int64, entry *model.PaymentEntry) error
	// Delete removes the aliyah and its history.
	Delete(ctx context.Context, id uuid.UUID) error
}

type aliyahRepository struct {
	db *gorm.DB
}

// NewAliyahRepository creates a new aliyah repository.
func NewAliyahRepository(db *gorm.DB) AliyahRepository {
	return &aliyahRepository{db: db}
}

func orderedHistory(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

func (r *aliyahRepository) Create(ctx context.Context, aliyah *model.Aliyah, entries []model.PaymentEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner model.User
		if err := tx.Select("id").Where("id = ?", aliyah.UserID).First(&owner).Error; err != nil {
			return err
		}

		aliyah.PaymentHistory = nil
		if err := tx.Omit(clause.Associations).Create(aliyah).Error; err != nil {
			return err
		}

		for i := range entries {
			entries[i].AliyahID = aliyah.ID
			entries[i].Sequence = i + 1
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		aliyah.PaymentHistory = entries
		return nil
	})
}

func (r *aliyahRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Aliyah, error) {
	var aliyah model.Aliyah
	if err := r.db.WithContext(ctx).
		Preload("PaymentHistory", orderedHistory).
		Where("id = ?", id).
		First(&aliyah).Error; err != nil {
		return nil, err
	}
	return &aliyah, nil
}

func (r *aliyahRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Aliyah, error) {
	var aliyot []model.Aliyah
	if err := r.db.WithContext(ctx).
		Preload("PaymentHistory", orderedHistory).
		Where("user_id = ?", userID).
		Order("date ASC, created_at ASC, id ASC").
		Find(&aliyot).Error; err != nil {
		return nil, err
	}
	return aliyot, nil
}

func (r *aliyahRepository) ApplyChange(ctx context.Context, aliyah *model.Aliyah, expectedVersion int64, entry *model.PaymentEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"amount":      aliyah.Amount,
			"paid_amount": aliyah.PaidAmount,
			"parsha":      aliyah.Parsha,
			"aliya_type":  aliyah.AliyaType,
			"version":     gorm.Expr("version + 1"),
		}
		if aliyah.PaidDate != nil {
			updates["paid_date"] = *aliyah.PaidDate
		}

		res := tx.Model(&model.Aliyah{}).
			Where("id = ? AND version = ?", aliyah.ID, expectedVersion).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&model.Aliyah{}).Where("id = ?", aliyah.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return gorm.ErrRecordNotFound
			}
			return ErrStaleVersion
		}

		if entry != nil {
			entry.AliyahID = aliyah.ID
			entry.Sequence = len(aliyah.PaymentHistory) + 1
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
			aliyah.PaymentHistory = append(aliyah.PaymentHistory, *entry)
		}
		aliyah.Version = expectedVersion + 1
		return nil
	})
}

func (r *aliyahRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("aliyah_id = ?", id).Delete(&model.PaymentEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Aliyah{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
