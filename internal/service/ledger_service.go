package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"synagogue/internal/access"
	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

// CreateAliyahInput carries the fields of a new aliyah debt.
type CreateAliyahInput struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Parsha    string
	AliyaType model.AliyaType
	Date      time.Time
	IsPaid    bool
}

// EditFields lists the replaceable fields of an aliyah; nil means unchanged.
type EditFields struct {
	Amount    *decimal.Decimal
	Parsha    *string
	AliyaType *model.AliyaType
}

// UserLedger is a user with their aliyot and totals.
type UserLedger struct {
	User       model.UserSummary `json:"user"`
	Aliyot     []model.Aliyah    `json:"aliyot"`
	Statistics model.Statistics  `json:"statistics"`
}

// LedgerService stores aliyot and keeps them consistent with their owners.
type LedgerService interface {
	CreateAliyah(ctx context.Context, actor *auth.Session, in CreateAliyahInput) (*model.Aliyah, error)
	ListForUser(ctx context.Context, actor *auth.Session, userID uuid.UUID) ([]model.Aliyah, error)
	UserDetails(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*UserLedger, error)

	// Load returns an aliyah with its owner, without access checks.
	Load(ctx context.Context, id uuid.UUID) (*model.Aliyah, *model.User, error)
	// EditFields replaces the given fields of a loaded aliyah. Raising the
	// amount above what was paid reopens it.
	EditFields(ctx context.Context, aliyah *model.Aliyah, fields EditFields) error
	// Delete removes an aliyah and its history.
	Delete(ctx context.Context, id uuid.UUID) error
}

type ledgerService struct {
	users  repository.UserRepository
	aliyot repository.AliyahRepository
	log    *zap.Logger
	now    func() time.Time
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(users repository.UserRepository, aliyot repository.AliyahRepository, log *zap.Logger) LedgerService {
	return &ledgerService{
		users:  users,
		aliyot: aliyot,
		log:    log,
		now:    time.Now,
	}
}

func (s *ledgerService) owner(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	owner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrUserNotFound, "find owner")
	}
	return owner, nil
}

// CreateAliyah validates and stores a new aliyah. When IsPaid is set the
// aliyah is created settled with a single history entry.
func (s *ledgerService) CreateAliyah(ctx context.Context, actor *auth.Session, in CreateAliyahInput) (*model.Aliyah, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	if err := validateMoney(in.Amount, false); err != nil {
		return nil, err
	}
	in.Parsha = strings.TrimSpace(in.Parsha)
	if in.Parsha == "" {
		return nil, apperrors.Validation("PARSHA_REQUIRED", "parsha is required")
	}
	if !in.AliyaType.Valid() {
		return nil, apperrors.Validation("INVALID_ALIYA_TYPE", "invalid aliyah type")
	}
	if in.Date.IsZero() {
		return nil, apperrors.Validation("DATE_REQUIRED", "date is required")
	}

	owner, err := s.owner(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanMutate(actor, access.TargetOf(owner), access.OpCreate)); err != nil {
		return nil, err
	}

	aliyah := &model.Aliyah{
		UserID:     owner.ID,
		Amount:     in.Amount,
		PaidAmount: decimal.Zero,
		Parsha:     in.Parsha,
		AliyaType:  in.AliyaType,
		Date:       in.Date,
	}

	now := s.now()
	var entries []model.PaymentEntry
	if in.IsPaid {
		aliyah.PaidAmount = in.Amount
		entries = append(entries, model.PaymentEntry{
			Amount:     in.Amount,
			Date:       now,
			Note:       model.NotePaidAtCreation,
			RecordedBy: &actor.UserID,
		})
	}
	// A zero amount is settled from the start.
	if aliyah.IsPaid() {
		aliyah.PaidDate = &now
	}

	if err := s.aliyot.Create(ctx, aliyah, entries); err != nil {
		return nil, notFoundAs(err, apperrors.ErrUserNotFound, "create aliyah")
	}

	s.log.Info("aliyah created",
		zap.String("aliyah_id", aliyah.ID.String()),
		zap.String("user_id", owner.ID.String()),
		zap.String("amount", aliyah.Amount.String()),
		zap.Bool("paid", aliyah.IsPaid()),
		zap.String("actor_id", actor.UserID.String()),
	)
	return aliyah, nil
}

// ListForUser returns the user's aliyot oldest first.
func (s *ledgerService) ListForUser(ctx context.Context, actor *auth.Session, userID uuid.UUID) ([]model.Aliyah, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanMutate(actor, access.TargetOf(owner), access.OpView)); err != nil {
		return nil, err
	}

	aliyot, err := s.aliyot.FindByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if aliyot == nil {
		aliyot = []model.Aliyah{}
	}
	return aliyot, nil
}

// UserDetails returns a user with their aliyot and totals. Staff only.
func (s *ledgerService) UserDetails(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*UserLedger, error) {
	if err := checkAccess(s.log, actor, access.RequireElevated(actor)); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanMutate(actor, access.TargetOf(owner), access.OpView)); err != nil {
		return nil, err
	}

	aliyot, err := s.aliyot.FindByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if aliyot == nil {
		aliyot = []model.Aliyah{}
	}
	return &UserLedger{
		User:       owner.Summary(),
		Aliyot:     aliyot,
		Statistics: model.Summarize(aliyot),
	}, nil
}

func (s *ledgerService) Load(ctx context.Context, id uuid.UUID) (*model.Aliyah, *model.User, error) {
	aliyah, err := s.aliyot.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFoundAs(err, apperrors.ErrAliyahNotFound, "find aliyah")
	}
	owner, err := s.owner(ctx, aliyah.UserID)
	if err != nil {
		return nil, nil, err
	}
	return aliyah, owner, nil
}

func (s *ledgerService) EditFields(ctx context.Context, aliyah *model.Aliyah, fields EditFields) error {
	updated := *aliyah

	if fields.Amount != nil {
		if err := validateMoney(*fields.Amount, false); err != nil {
			return err
		}
		if fields.Amount.LessThan(aliyah.PaidAmount) {
			return apperrors.ErrAmountBelowPaid
		}
		updated.Amount = *fields.Amount
	}
	if fields.Parsha != nil {
		parsha := strings.TrimSpace(*fields.Parsha)
		if parsha == "" {
			return apperrors.Validation("PARSHA_REQUIRED", "parsha is required")
		}
		updated.Parsha = parsha
	}
	if fields.AliyaType != nil {
		if !fields.AliyaType.Valid() {
			return apperrors.Validation("INVALID_ALIYA_TYPE", "invalid aliyah type")
		}
		updated.AliyaType = *fields.AliyaType
	}

	// Lowering the amount onto the paid amount settles the aliyah.
	if updated.IsPaid() && updated.PaidDate == nil {
		now := s.now()
		updated.PaidDate = &now
	}

	if err := s.aliyot.ApplyChange(ctx, &updated, aliyah.Version, nil); err != nil {
		return storeError(err, "edit aliyah")
	}

	s.log.Info("aliyah edited",
		zap.String("aliyah_id", aliyah.ID.String()),
		zap.String("amount", updated.Amount.String()),
		zap.Bool("was_paid", aliyah.IsPaid()),
		zap.Bool("paid", updated.IsPaid()),
	)
	*aliyah = updated
	return nil
}

func (s *ledgerService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.aliyot.Delete(ctx, id); err != nil {
		return notFoundAs(err, apperrors.ErrAliyahNotFound, "delete aliyah")
	}
	s.log.Info("aliyah deleted", zap.String("aliyah_id", id.String()))
	return nil
}

// storeError maps repository write errors to domain errors.
func storeError(err error, op string) error {
	if errors.Is(err, repository.ErrStaleVersion) {
		return apperrors.ErrConflict
	}
	return notFoundAs(err, apperrors.ErrAliyahNotFound, op)
}
