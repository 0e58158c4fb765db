package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"synagogue/internal/auth"
	"synagogue/internal/db/dbtest"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

var phoneSeq int64

type fixture struct {
	db       *gorm.DB
	users    repository.UserRepository
	aliyot   repository.AliyahRepository
	ledger   LedgerService
	payments PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gormDB := dbtest.Open(t)
	f := &fixture{
		db:     gormDB,
		users:  repository.NewUserRepository(gormDB),
		aliyot: repository.NewAliyahRepository(gormDB),
	}
	f.ledger = NewLedgerService(f.users, f.aliyot, zap.NewNop())
	f.payments = NewPaymentService(f.ledger, f.users, f.aliyot, BulkContinue, zap.NewNop())
	return f
}

// user stores a user with role and returns it with a session acting as them.
func (f *fixture) user(t *testing.T, role model.Role) (*model.User, *auth.Session) {
	t.Helper()
	n := atomic.AddInt64(&phoneSeq, 1)
	u := &model.User{
		Phone:        fmt.Sprintf("05%08d", n),
		FirstName:    "Test",
		LastName:     string(role),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u, &auth.Session{UserID: u.ID, Role: role}
}

// aliyah creates an unpaid aliyah of amount for owner through the ledger.
func (f *fixture) aliyah(t *testing.T, owner *model.User, amount string, date time.Time) *model.Aliyah {
	t.Helper()
	a, err := f.ledger.CreateAliyah(context.Background(), &auth.Session{UserID: owner.ID, Role: owner.Role}, CreateAliyahInput{
		UserID:    owner.ID,
		Amount:    decimal.RequireFromString(amount),
		Parsha:    "Bereshit",
		AliyaType: model.AliyaRevii,
		Date:      date,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.Aliyah {
	t.Helper()
	a, _, err := f.ledger.Load(context.Background(), id)
	require.NoError(t, err)
	return a
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 9, 0, 0, 0, time.UTC)
}
