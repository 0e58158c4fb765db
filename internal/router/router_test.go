package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synagogue/internal/auth"
	"synagogue/internal/cache"
	"synagogue/internal/calendar"
	"synagogue/internal/db/dbtest"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/handler"
	"synagogue/internal/model"
	"synagogue/internal/repository"
	"synagogue/internal/service"
)

type memoryTokenStore struct {
	mu        sync.Mutex
	refresh   map[string]uuid.UUID
	blacklist map[string]bool
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{refresh: map[string]uuid.UUID{}, blacklist: map[string]bool{}}
}

func (s *memoryTokenStore) StoreRefreshToken(_ context.Context, tokenID string, userID uuid.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenID] = userID
	return nil
}

func (s *memoryTokenStore) GetRefreshToken(_ context.Context, tokenID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[tokenID]
	if !ok {
		return uuid.Nil, fmt.Errorf("refresh token not found")
	}
	return id, nil
}

func (s *memoryTokenStore) DeleteRefreshToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenID)
	return nil
}

func (s *memoryTokenStore) BlacklistAccessToken(_ context.Context, tokenID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[tokenID] = true
	return nil
}

func (s *memoryTokenStore) IsAccessTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[tokenID], nil
}

type noCalendar struct{}

func (noCalendar) Shabbat(context.Context, int) (*calendar.Shabbat, error) {
	return nil, calendar.ErrUnavailable
}

func (noCalendar) Zmanim(context.Context, int, time.Time) (*calendar.Zmanim, error) {
	return nil, calendar.ErrUnavailable
}

type testServer struct {
	e     *echo.Echo
	jwt   *auth.JWTService
	users repository.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gormDB := dbtest.Open(t)
	log := zap.NewNop()

	// A nil cache client behaves as a permanent miss.
	var cacheClient *cache.Client

	users := repository.NewUserRepository(gormDB)
	aliyot := repository.NewAliyahRepository(gormDB)
	synagogues := repository.NewSynagogueRepository(gormDB)
	jwtService := auth.NewJWTService("test-secret")
	tokens := newMemoryTokenStore()

	ledger := service.NewLedgerService(users, aliyot, log)
	payments := service.NewPaymentService(ledger, users, aliyot, service.BulkContinue, log)
	synagogueService := service.NewSynagogueService(synagogues, log)

	e := echo.New()
	Register(e, log, jwtService, tokens, users, Handlers{
		Auth:      handler.NewAuthHandler(service.NewAuthService(users, jwtService, tokens, log), log),
		User:      handler.NewUserHandler(service.NewUserService(users, cacheClient, log), log),
		Aliyah:    handler.NewAliyahHandler(ledger, payments, log),
		Synagogue: handler.NewSynagogueHandler(synagogueService, log),
		Calendar:  handler.NewCalendarHandler(service.NewCalendarService(noCalendar{}, synagogueService, ledger, 0, log), log),
	})
	return &testServer{e: e, jwt: jwtService, users: users}
}

func (s *testServer) user(t *testing.T, phone string, role model.Role) (*model.User, string) {
	t.Helper()
	u := &model.User{Phone: phone, FirstName: "Test", LastName: string(role), PasswordHash: "x", Role: role}
	require.NoError(t, s.users.Create(context.Background(), u))
	token, err := s.jwt.GenerateAccessToken(u.ID, role)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type aliyahBody struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Remaining  decimal.Decimal `json:"remaining"`
	IsPaid     bool            `json:"isPaid"`
	PaidDate   *time.Time      `json:"paidDate"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	decode(t, rec, &resp)
	return resp
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.ReasonNotAuthenticated, errorOf(t, rec).Reason)

	rec = s.do(t, http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PaymentFlow(t *testing.T) {
	s := newTestServer(t)
	_, gabaiToken := s.user(t, "0500000001", model.RoleGabai)
	owner, ownerToken := s.user(t, "0500000002", model.RoleUser)

	rec := s.do(t, http.MethodPost, "/api/aliyot/addAliyah", gabaiToken, map[string]interface{}{
		"userId":    owner.ID.String(),
		"amount":    "200",
		"parsha":    "Bereshit",
		"aliyaType": "shlishi",
		"date":      "2026-01-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created aliyahBody
	decode(t, rec, &created)
	assert.False(t, created.IsPaid)
	assert.True(t, created.Remaining.Equal(decimal.NewFromInt(200)))

	rec = s.do(t, http.MethodPost, "/api/aliyot/payment/"+created.ID.String()+"/partial", ownerToken, map[string]string{"amount": "80"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid aliyahBody
	decode(t, rec, &paid)
	assert.True(t, paid.PaidAmount.Equal(decimal.NewFromInt(80)))
	assert.Nil(t, paid.PaidDate)

	rec = s.do(t, http.MethodPost, "/api/aliyot/payment/"+created.ID.String()+"/partial", ownerToken, map[string]string{"amount": "500"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AMOUNT_EXCEEDS_REMAINING", errorOf(t, rec).Code)

	// Plain users cannot edit, even their own aliyot.
	rec = s.do(t, http.MethodPut, "/api/aliyot/debt/"+created.ID.String(), ownerToken, map[string]string{"amount": "10"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.ReasonInsufficientRole, errorOf(t, rec).Reason)

	rec = s.do(t, http.MethodPut, "/api/aliyot/payment/"+created.ID.String(), ownerToken, map[string]bool{"isPaid": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/aliyot/payment/"+created.ID.String(), ownerToken, map[string]bool{"isPaid": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &paid)
	assert.True(t, paid.IsPaid)
	assert.NotNil(t, paid.PaidDate)

	rec = s.do(t, http.MethodPut, "/api/aliyot/payment/"+created.ID.String(), ownerToken, map[string]bool{"isPaid": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALIYAH_ALREADY_PAID", errorOf(t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/aliyot/user/"+owner.ID.String()+"/details", gabaiToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var details struct {
		Statistics model.Statistics `json:"statistics"`
	}
	decode(t, rec, &details)
	assert.Equal(t, 1, details.Statistics.Count)
	assert.True(t, details.Statistics.UnpaidAmount.IsZero())

	rec = s.do(t, http.MethodGet, "/api/aliyot/user/"+owner.ID.String()+"/details", ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_RoleChangesApplyToLiveTokens(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.user(t, "0500000010", model.RoleAdmin)
	manager, managerToken := s.user(t, "0500000011", model.RoleManager)
	victim, victimToken := s.user(t, "0500000012", model.RoleUser)

	rec := s.do(t, http.MethodPost, "/api/aliyot/addAliyah", victimToken, map[string]interface{}{
		"amount":    "100",
		"parsha":    "Vayera",
		"aliyaType": "shishi",
		"date":      "2026-03-07",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created aliyahBody
	decode(t, rec, &created)

	rec = s.do(t, http.MethodPut, "/api/users/"+manager.ID.String()+"/role", adminToken, map[string]string{"role": "user"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The token was signed while the account was a manager.
	rec = s.do(t, http.MethodPut, "/api/aliyot/debt/"+created.ID.String(), managerToken, map[string]string{"amount": "500"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.ReasonNotOwner, errorOf(t, rec).Reason)

	rec = s.do(t, http.MethodGet, "/api/aliyot/user/"+victim.ID.String()+"/details", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var details struct {
		Statistics model.Statistics `json:"statistics"`
	}
	decode(t, rec, &details)
	assert.True(t, details.Statistics.TotalAmount.Equal(decimal.NewFromInt(100)))

	rec = s.do(t, http.MethodDelete, "/api/users/"+manager.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/users/me", managerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_BulkPartial(t *testing.T) {
	s := newTestServer(t)
	owner, token := s.user(t, "0500000003", model.RoleUser)

	for i, amount := range []string{"50", "30", "20"} {
		rec := s.do(t, http.MethodPost, "/api/aliyot/addAliyah", token, map[string]interface{}{
			"amount":    amount,
			"parsha":    "Noach",
			"aliyaType": "revii",
			"date":      fmt.Sprintf("2026-02-%02d", i+1),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/aliyot/user/"+owner.ID.String()+"/payment/partial", token, map[string]string{"amount": "60"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.BulkResult
	decode(t, rec, &result)
	require.Len(t, result.Applied, 2)
	assert.True(t, result.Applied[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, result.Applied[0].Paid)
	assert.True(t, result.Applied[1].Amount.Equal(decimal.NewFromInt(10)))
	assert.False(t, result.Applied[1].Paid)
	assert.True(t, result.Unallocated.IsZero())

	rec = s.do(t, http.MethodPost, "/api/aliyot/user/"+owner.ID.String()+"/payment/partial", token, map[string]string{"amount": "1000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RequestValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "0500000004", model.RoleGabai)

	rec := s.do(t, http.MethodPost, "/api/aliyot/payment/not-a-uuid/partial", token, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UUID", errorOf(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/aliyot/addAliyah", token, map[string]interface{}{
		"amount":    "10",
		"parsha":    "Noach",
		"aliyaType": "eighth",
		"date":      "2026-02-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorOf(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/aliyot/addAliyah", token, map[string]interface{}{
		"amount":    "10",
		"parsha":    "Noach",
		"aliyaType": "maftir",
		"date":      "01/02/2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/aliyot/payment/"+uuid.NewString()+"/partial", token, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ALIYAH_NOT_FOUND", errorOf(t, rec).Code)
}

func TestRouter_LoginAndLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"phone":     "0521234567",
		"password":  "secret123",
		"firstName": "Yosef",
		"lastName":  "Cohen",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"phone":     "12345",
		"password":  "secret123",
		"firstName": "Yosef",
		"lastName":  "Cohen",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "0521234567", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens handler.AuthResponse
	decode(t, rec, &tokens)
	require.NotEmpty(t, tokens.AccessToken)

	rec = s.do(t, http.MethodGet, "/api/users/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/logout", tokens.AccessToken, map[string]string{"refresh_token": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/users/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidator_CustomTags(t *testing.T) {
	v := NewValidator()

	type sample struct {
		Phone string          `validate:"phone10"`
		Type  model.AliyaType `validate:"aliyatype"`
		Time  string          `validate:"hhmm"`
	}

	assert.NoError(t, v.Validate(sample{Phone: "0501234567", Type: model.AliyaMaftir, Time: "06:30"}))
	assert.Error(t, v.Validate(sample{Phone: "050123456", Type: model.AliyaMaftir, Time: "06:30"}))
	assert.Error(t, v.Validate(sample{Phone: "0501234567", Type: "eighth", Time: "06:30"}))
	assert.Error(t, v.Validate(sample{Phone: "0501234567", Type: model.AliyaMaftir, Time: "24:00"}))
}
