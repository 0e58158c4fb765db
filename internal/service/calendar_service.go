package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"synagogue/internal/auth"
	"synagogue/internal/calendar"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
)

// CalendarProvider is the source of Shabbat times and zmanim.
type CalendarProvider interface {
	Shabbat(ctx context.Context, geonameID int) (*calendar.Shabbat, error)
	Zmanim(ctx context.Context, geonameID int, date time.Time) (*calendar.Zmanim, error)
}

// WeekView is the coming Shabbat together with a synagogue's prayer hours.
type WeekView struct {
	Synagogue model.Synagogue    `json:"synagogue"`
	Shabbat   *calendar.Shabbat  `json:"shabbat"`
	Prayers   []model.PrayerTime `json:"prayers"`
}

// ZmanimView is one day of zmanim for a synagogue.
type ZmanimView struct {
	SynagogueID uuid.UUID        `json:"synagogueId"`
	Zmanim      *calendar.Zmanim `json:"zmanim"`
}

// ReminderItem is one outstanding aliyah.
type ReminderItem struct {
	AliyahID  uuid.UUID       `json:"aliyahId"`
	Parsha    string          `json:"parsha"`
	AliyaType model.AliyaType `json:"aliyaType"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

// ReminderView lists what a user still owes, oldest first.
type ReminderView struct {
	UserID         uuid.UUID       `json:"userId"`
	Outstanding    []ReminderItem  `json:"outstanding"`
	TotalRemaining decimal.Decimal `json:"totalRemaining"`
	UpcomingParsha string          `json:"upcomingParsha"`
}

// CalendarService joins the Hebrew calendar with synagogue and ledger data.
type CalendarService interface {
	Week(ctx context.Context, actor *auth.Session, synagogueID uuid.UUID) (*WeekView, error)
	Zmanim(ctx context.Context, actor *auth.Session, synagogueID uuid.UUID, date time.Time) (*ZmanimView, error)
	Reminders(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*ReminderView, error)
}

type calendarService struct {
	provider         CalendarProvider
	synagogues       SynagogueService
	ledger           LedgerService
	defaultGeonameID int
	log              *zap.Logger
}

// NewCalendarService creates a new calendar service. defaultGeonameID is used
// for synagogues without a location and for reminders; zero disables it.
func NewCalendarService(provider CalendarProvider, synagogues SynagogueService, ledger LedgerService, defaultGeonameID int, log *zap.Logger) CalendarService {
	return &calendarService{
		provider:         provider,
		synagogues:       synagogues,
		ledger:           ledger,
		defaultGeonameID: defaultGeonameID,
		log:              log,
	}
}

func (s *calendarService) locate(ctx context.Context, actor *auth.Session, synagogueID uuid.UUID) (*model.Synagogue, int, error) {
	synagogue, err := s.synagogues.Get(ctx, actor, synagogueID)
	if err != nil {
		return nil, 0, err
	}
	geonameID := synagogue.GeonameID
	if geonameID == 0 {
		geonameID = s.defaultGeonameID
	}
	if geonameID == 0 {
		return nil, 0, apperrors.Validation("LOCATION_MISSING", "synagogue has no calendar location")
	}
	return synagogue, geonameID, nil
}

func (s *calendarService) Week(ctx context.Context, actor *auth.Session, synagogueID uuid.UUID) (*WeekView, error) {
	synagogue, geonameID, err := s.locate(ctx, actor, synagogueID)
	if err != nil {
		return nil, err
	}
	shabbat, err := s.provider.Shabbat(ctx, geonameID)
	if err != nil {
		return nil, err
	}
	prayers := []model.PrayerTime(synagogue.Prayers)
	if prayers == nil {
		prayers = []model.PrayerTime{}
	}
	return &WeekView{Synagogue: *synagogue, Shabbat: shabbat, Prayers: prayers}, nil
}

func (s *calendarService) Zmanim(ctx context.Context, actor *auth.Session, synagogueID uuid.UUID, date time.Time) (*ZmanimView, error) {
	_, geonameID, err := s.locate(ctx, actor, synagogueID)
	if err != nil {
		return nil, err
	}
	zmanim, err := s.provider.Zmanim(ctx, geonameID, date)
	if err != nil {
		return nil, err
	}
	return &ZmanimView{SynagogueID: synagogueID, Zmanim: zmanim}, nil
}

// Reminders lists the user's unpaid aliyot. A calendar failure leaves the
// upcoming parsha empty instead of failing the request.
func (s *calendarService) Reminders(ctx context.Context, actor *auth.Session, userID uuid.UUID) (*ReminderView, error) {
	aliyot, err := s.ledger.ListForUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}

	view := &ReminderView{
		UserID:         userID,
		Outstanding:    []ReminderItem{},
		TotalRemaining: decimal.Zero,
	}
	for _, a := range aliyot {
		if a.IsPaid() {
			continue
		}
		view.Outstanding = append(view.Outstanding, ReminderItem{
			AliyahID:  a.ID,
			Parsha:    a.Parsha,
			AliyaType: a.AliyaType,
			Date:      a.Date,
			Amount:    a.Amount,
			Remaining: a.Remaining(),
		})
		view.TotalRemaining = view.TotalRemaining.Add(a.Remaining())
	}

	if s.defaultGeonameID != 0 {
		shabbat, err := s.provider.Shabbat(ctx, s.defaultGeonameID)
		if err != nil {
			s.log.Warn("upcoming parsha unavailable", zap.Error(err))
		} else {
			view.UpcomingParsha = shabbat.Parsha
		}
	}
	return view, nil
}
