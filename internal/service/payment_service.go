package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"synagogue/internal/access"
	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/metrics"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

// BulkPolicy decides what a bulk full payment does after one aliyah fails.
type BulkPolicy string

const (
	// BulkContinue records the failure and moves on to the next aliyah.
	BulkContinue BulkPolicy = "continue"
	// BulkAbort stops at the first failure and skips the rest.
	BulkAbort BulkPolicy = "abort"
)

// Allocation is the amount a bulk payment applied to one aliyah.
type Allocation struct {
	AliyahID uuid.UUID       `json:"aliyahId"`
	Amount   decimal.Decimal `json:"amount"`
	Paid     bool            `json:"isPaid"`
}

// BulkFailure describes an aliyah a bulk payment could not settle.
type BulkFailure struct {
	AliyahID uuid.UUID `json:"aliyahId"`
	Code     string    `json:"code"`
	Error    string    `json:"error"`
}

// BulkResult summarizes a bulk payment.
type BulkResult struct {
	Applied     []Allocation    `json:"applied"`
	Failed      []BulkFailure   `json:"failed"`
	Skipped     []uuid.UUID     `json:"skipped"`
	Total       decimal.Decimal `json:"total"`
	Unallocated decimal.Decimal `json:"unallocated"`
}

func newBulkResult() *BulkResult {
	return &BulkResult{
		Applied:     []Allocation{},
		Failed:      []BulkFailure{},
		Skipped:     []uuid.UUID{},
		Total:       decimal.Zero,
		Unallocated: decimal.Zero,
	}
}

func (r *BulkResult) fail(id uuid.UUID, err error) {
	httpErr := apperrors.MapErrorToHTTP(err)
	r.Failed = append(r.Failed, BulkFailure{AliyahID: id, Code: httpErr.Code, Error: httpErr.Message})
}

// PaymentService applies payments, edits and deletions to aliyot. Every
// operation passes the access gate before anything is written.
type PaymentService interface {
	PayInFull(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID) (*model.Aliyah, error)
	PayPartial(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID, amount decimal.Decimal, note string) (*model.Aliyah, error)
	PayBulkFull(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*BulkResult, error)
	PayBulkPartial(ctx context.Context, actor *auth.Session, userID uuid.UUID, total decimal.Decimal, note string) (*BulkResult, error)
	EditAliyah(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID, fields EditFields) (*model.Aliyah, error)
	DeleteAliyah(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID) error
}

type paymentService struct {
	ledger LedgerService
	users  repository.UserRepository
	aliyot repository.AliyahRepository
	policy BulkPolicy
	log    *zap.Logger
	now    func() time.Time
	// Mutex map for per-aliyah locking
	aliyahMutexes sync.Map
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	ledger LedgerService,
	users repository.UserRepository,
	aliyot repository.AliyahRepository,
	policy BulkPolicy,
	log *zap.Logger,
) PaymentService {
	if policy != BulkAbort {
		policy = BulkContinue
	}
	return &paymentService{
		ledger: ledger,
		users:  users,
		aliyot: aliyot,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// getMutex returns a mutex for a specific aliyah ID.
func (s *paymentService) getMutex(aliyahID uuid.UUID) *sync.Mutex {
	value, _ := s.aliyahMutexes.LoadOrStore(aliyahID.String(), &sync.Mutex{})
	return value.(*sync.Mutex)
}

// loadAuthorized loads an aliyah and its owner and runs the gate for op.
func (s *paymentService) loadAuthorized(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID, op access.Operation) (*model.Aliyah, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	aliyah, owner, err := s.ledger.Load(ctx, aliyahID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanMutate(actor, access.TargetOf(owner), op)); err != nil {
		return nil, err
	}
	return aliyah, nil
}

func (s *paymentService) record(kind string, err error, amount decimal.Decimal) {
	status := "ok"
	switch {
	case err == nil:
		metrics.PaymentAmountTotal.WithLabelValues(kind).Add(amount.InexactFloat64())
	case errors.Is(err, apperrors.ErrConflict):
		status = "conflict"
	case apperrors.IsInternal(err):
		status = "error"
	default:
		status = "rejected"
	}
	metrics.PaymentsTotal.WithLabelValues(kind, status).Inc()
}

// settle moves paidAmount up by delta, stamps paidDate the first time the
// aliyah becomes paid and writes the change with one history entry.
func (s *paymentService) settle(ctx context.Context, actor *auth.Session, aliyah *model.Aliyah, delta decimal.Decimal, note string) error {
	updated := *aliyah
	now := s.now()
	updated.PaidAmount = aliyah.PaidAmount.Add(delta)
	if updated.IsPaid() && updated.PaidDate == nil {
		updated.PaidDate = &now
	}

	entry := &model.PaymentEntry{
		Amount:     delta,
		Date:       now,
		Note:       note,
		RecordedBy: &actor.UserID,
	}
	if err := s.aliyot.ApplyChange(ctx, &updated, aliyah.Version, entry); err != nil {
		return storeError(err, "apply payment")
	}
	*aliyah = updated
	return nil
}

// PayInFull settles the remaining balance of an aliyah.
func (s *paymentService) PayInFull(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID) (*model.Aliyah, error) {
	aliyah, delta, err := s.payInFull(ctx, actor, aliyahID)
	s.record("full", err, delta)
	if err != nil {
		return nil, err
	}
	return aliyah, nil
}

func (s *paymentService) payInFull(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID) (*model.Aliyah, decimal.Decimal, error) {
	mutex := s.getMutex(aliyahID)
	mutex.Lock()
	defer mutex.Unlock()

	aliyah, err := s.loadAuthorized(ctx, actor, aliyahID, access.OpPay)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if aliyah.IsPaid() {
		return nil, decimal.Zero, apperrors.ErrAlreadyPaid
	}

	delta := aliyah.Remaining()
	if err := s.settle(ctx, actor, aliyah, delta, model.NoteFullPayment); err != nil {
		return nil, decimal.Zero, err
	}

	s.log.Info("aliyah paid in full",
		zap.String("aliyah_id", aliyah.ID.String()),
		zap.String("amount", delta.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	return aliyah, delta, nil
}

// PayPartial records a payment of amount towards an aliyah.
func (s *paymentService) PayPartial(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID, amount decimal.Decimal, note string) (*model.Aliyah, error) {
	aliyah, err := s.payPartial(ctx, actor, aliyahID, func(*model.Aliyah) (decimal.Decimal, error) {
		return amount, nil
	}, note)
	s.record("partial", err, amount)
	return aliyah, err
}

// payPartial applies the amount chosen by pick once the aliyah is loaded and
// locked. pick sees the fresh aliyah, which lets bulk payments cap their
// portion by the current remaining balance.
func (s *paymentService) payPartial(
	ctx context.Context,
	actor *auth.Session,
	aliyahID uuid.UUID,
	pick func(*model.Aliyah) (decimal.Decimal, error),
	note string,
) (*model.Aliyah, error) {
	mutex := s.getMutex(aliyahID)
	mutex.Lock()
	defer mutex.Unlock()

	aliyah, err := s.loadAuthorized(ctx, actor, aliyahID, access.OpPartialPay)
	if err != nil {
		return nil, err
	}

	amount, err := pick(aliyah)
	if err != nil {
		return nil, err
	}
	if err := validateMoney(amount, true); err != nil {
		return nil, err
	}
	if amount.GreaterThan(aliyah.Remaining()) {
		return nil, apperrors.ErrOverpayment
	}

	if err := s.settle(ctx, actor, aliyah, amount, note); err != nil {
		return nil, err
	}

	s.log.Info("partial payment recorded",
		zap.String("aliyah_id", aliyah.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("remaining", aliyah.Remaining().String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	return aliyah, nil
}

// unpaidFor checks the gate for op on the user's aliyot and returns the unpaid
// ones oldest first.
func (s *paymentService) unpaidFor(ctx context.Context, actor *auth.Session, userID uuid.UUID, op access.Operation) ([]model.Aliyah, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrUserNotFound, "find owner")
	}
	if err := checkAccess(s.log, actor, access.CanMutate(actor, access.TargetOf(owner), op)); err != nil {
		return nil, err
	}

	aliyot, err := s.aliyot.FindByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	unpaid := make([]model.Aliyah, 0, len(aliyot))
	for _, a := range aliyot {
		if !a.IsPaid() {
			unpaid = append(unpaid, a)
		}
	}
	sort.SliceStable(unpaid, func(i, j int) bool {
		return unpaid[i].Date.Before(unpaid[j].Date)
	})
	return unpaid, nil
}

// PayBulkFull pays every unpaid aliyah of a user in full, oldest first. Each
// aliyah is settled independently; what happens after a failure depends on
// the configured BulkPolicy.
func (s *paymentService) PayBulkFull(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*BulkResult, error) {
	unpaid, err := s.unpaidFor(ctx, actor, userID, access.OpPay)
	if err != nil {
		s.record("bulk_full", err, decimal.Zero)
		return nil, err
	}

	result := newBulkResult()
	for i, a := range unpaid {
		paid, delta, err := s.payInFull(ctx, actor, a.ID)
		s.record("full", err, delta)
		if err != nil {
			s.log.Warn("bulk full payment item failed",
				zap.String("aliyah_id", a.ID.String()),
				zap.Error(err),
			)
			result.fail(a.ID, err)
			if s.policy == BulkAbort {
				for _, rest := range unpaid[i+1:] {
					result.Skipped = append(result.Skipped, rest.ID)
				}
				break
			}
			continue
		}
		result.Applied = append(result.Applied, Allocation{AliyahID: paid.ID, Amount: delta, Paid: true})
		result.Total = result.Total.Add(delta)
	}

	s.record("bulk_full", nil, decimal.Zero)
	s.log.Info("bulk full payment finished",
		zap.String("user_id", userID.String()),
		zap.Int("applied", len(result.Applied)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total", result.Total.String()),
	)
	return result, nil
}

// PayBulkPartial spreads total over the user's unpaid aliyot oldest first,
// exhausting each one before touching the next. It stops at the first aliyah
// that cannot be paid and reports what was left unallocated.
func (s *paymentService) PayBulkPartial(ctx context.Context, actor *auth.Session, userID uuid.UUID, total decimal.Decimal, note string) (*BulkResult, error) {
	result, err := s.payBulkPartial(ctx, actor, userID, total, note)
	s.record("bulk_partial", err, decimal.Zero)
	return result, err
}

func (s *paymentService) payBulkPartial(ctx context.Context, actor *auth.Session, userID uuid.UUID, total decimal.Decimal, note string) (*BulkResult, error) {
	unpaid, err := s.unpaidFor(ctx, actor, userID, access.OpPartialPay)
	if err != nil {
		return nil, err
	}
	if err := validateMoney(total, true); err != nil {
		return nil, err
	}

	outstanding := decimal.Zero
	for _, a := range unpaid {
		outstanding = outstanding.Add(a.Remaining())
	}
	if total.GreaterThan(outstanding) {
		return nil, apperrors.Validation("AMOUNT_EXCEEDS_REMAINING", "amount exceeds the total remaining balance")
	}

	result := newBulkResult()
	left := total
	for i, a := range unpaid {
		if !left.IsPositive() {
			break
		}
		var portion decimal.Decimal
		paid, err := s.payPartial(ctx, actor, a.ID, func(fresh *model.Aliyah) (decimal.Decimal, error) {
			portion = decimal.Min(fresh.Remaining(), left)
			return portion, nil
		}, note)
		s.record("partial", err, portion)
		if err != nil {
			s.log.Warn("bulk partial payment stopped",
				zap.String("aliyah_id", a.ID.String()),
				zap.String("unallocated", left.String()),
				zap.Error(err),
			)
			result.fail(a.ID, err)
			for _, rest := range unpaid[i+1:] {
				result.Skipped = append(result.Skipped, rest.ID)
			}
			break
		}
		result.Applied = append(result.Applied, Allocation{AliyahID: paid.ID, Amount: portion, Paid: paid.IsPaid()})
		result.Total = result.Total.Add(portion)
		left = left.Sub(portion)
	}
	result.Unallocated = left

	s.log.Info("bulk partial payment finished",
		zap.String("user_id", userID.String()),
		zap.String("requested", total.String()),
		zap.String("applied", result.Total.String()),
		zap.Int("aliyot", len(result.Applied)),
	)
	return result, nil
}

// EditAliyah replaces amount, parsha or aliyah type. It is reserved for staff
// with authority over the owner.
func (s *paymentService) EditAliyah(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID, fields EditFields) (*model.Aliyah, error) {
	mutex := s.getMutex(aliyahID)
	mutex.Lock()
	defer mutex.Unlock()

	aliyah, err := s.loadAuthorized(ctx, actor, aliyahID, access.OpEdit)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.EditFields(ctx, aliyah, fields); err != nil {
		return nil, err
	}
	return aliyah, nil
}

// DeleteAliyah removes an aliyah with its history.
func (s *paymentService) DeleteAliyah(ctx context.Context, actor *auth.Session, aliyahID uuid.UUID) error {
	mutex := s.getMutex(aliyahID)
	mutex.Lock()
	defer mutex.Unlock()

	if _, err := s.loadAuthorized(ctx, actor, aliyahID, access.OpDelete); err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, aliyahID); err != nil {
		return err
	}
	s.aliyahMutexes.Delete(aliyahID.String())
	return nil
}
