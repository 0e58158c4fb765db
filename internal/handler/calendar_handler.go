package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"synagogue/internal/service"
)

// CalendarHandler handles Hebrew calendar and reminder endpoints.
type CalendarHandler struct {
	svc service.CalendarService
	log *zap.Logger
	now func() time.Time
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(svc service.CalendarService, log *zap.Logger) *CalendarHandler {
	return &CalendarHandler{svc: svc, log: log, now: time.Now}
}

// Week godoc
// @Summary Coming Shabbat and prayer hours of a synagogue
// @Tags calendar
// @Produce json
// @Security BearerAuth
// @Param synagogueId path string true "Synagogue ID"
// @Success 200 {object} service.WeekView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /calendar/{synagogueId}/week [get]
func (h *CalendarHandler) Week(c echo.Context) error {
	id, err := uuidParam(c, "synagogueId")
	if err != nil {
		return err
	}
	view, err := h.svc.Week(c.Request().Context(), session(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Zmanim godoc
// @Summary Halachic times of a day at a synagogue
// @Tags calendar
// @Produce json
// @Security BearerAuth
// @Param synagogueId path string true "Synagogue ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} service.ZmanimView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /calendar/{synagogueId}/zmanim [get]
func (h *CalendarHandler) Zmanim(c echo.Context) error {
	id, err := uuidParam(c, "synagogueId")
	if err != nil {
		return err
	}

	date := h.now()
	if raw := c.QueryParam("date"); raw != "" {
		date, err = time.Parse(dateLayout, raw)
		if err != nil {
			return badRequest("INVALID_DATE", "date must be YYYY-MM-DD")
		}
	}

	view, err := h.svc.Zmanim(c.Request().Context(), session(c), id, date)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Reminders godoc
// @Summary Outstanding aliyot of a user, oldest first
// @Tags aliyot
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} service.ReminderView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/{userId}/reminders [get]
func (h *CalendarHandler) Reminders(c echo.Context) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	view, err := h.svc.Reminders(c.Request().Context(), session(c), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, view)
}
