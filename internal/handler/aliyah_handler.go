package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"synagogue/internal/model"
	"synagogue/internal/service"
)

// AliyahHandler handles the aliyah ledger and payment endpoints.
type AliyahHandler struct {
	ledger   service.LedgerService
	payments service.PaymentService
	log      *zap.Logger
}

// NewAliyahHandler creates a new aliyah handler.
func NewAliyahHandler(ledger service.LedgerService, payments service.PaymentService, log *zap.Logger) *AliyahHandler {
	return &AliyahHandler{ledger: ledger, payments: payments, log: log}
}

// CreateAliyahRequest represents a new aliyah. userId defaults to the caller.
type CreateAliyahRequest struct {
	UserID    string           `json:"userId" validate:"omitempty,uuid"`
	Amount    *decimal.Decimal `json:"amount" validate:"required" swaggertype:"string"`
	Parsha    string           `json:"parsha" validate:"required"`
	AliyaType model.AliyaType  `json:"aliyaType" validate:"required,aliyatype"`
	Date      *Date            `json:"date" validate:"required" swaggertype:"string"`
	IsPaid    bool             `json:"isPaid"`
}

// FullPaymentRequest marks an aliyah as paid.
type FullPaymentRequest struct {
	IsPaid *bool `json:"isPaid" validate:"required"`
}

// PartialPaymentRequest records part of a balance.
type PartialPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required" swaggertype:"string"`
	Note   string           `json:"note" validate:"max=255"`
}

// EditAliyahRequest lists the fields to replace.
type EditAliyahRequest struct {
	Amount    *decimal.Decimal `json:"amount" swaggertype:"string"`
	Parsha    *string          `json:"parsha"`
	AliyaType *model.AliyaType `json:"aliyaType" validate:"omitempty,aliyatype"`
}

// CreateAliyah godoc
// @Summary Create an aliyah debt
// @Tags aliyot
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAliyahRequest true "Aliyah data"
// @Success 201 {object} model.Aliyah
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /aliyot/addAliyah [post]
func (h *AliyahHandler) CreateAliyah(c echo.Context) error {
	var req CreateAliyahRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	actor := session(c)
	var userID uuid.UUID
	if actor != nil {
		userID = actor.UserID
	}
	if req.UserID != "" {
		userID = uuid.MustParse(req.UserID)
	}

	aliyah, err := h.ledger.CreateAliyah(c.Request().Context(), actor, service.CreateAliyahInput{
		UserID:    userID,
		Amount:    *req.Amount,
		Parsha:    req.Parsha,
		AliyaType: req.AliyaType,
		Date:      req.Date.Time,
		IsPaid:    req.IsPaid,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, aliyah)
}

// ListAliyot godoc
// @Summary List a user's aliyot
// @Tags aliyot
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {array} model.Aliyah
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/{userId}/aliyot [get]
func (h *AliyahHandler) ListAliyot(c echo.Context) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	aliyot, err := h.ledger.ListForUser(c.Request().Context(), session(c), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, aliyot)
}

// UserDetails godoc
// @Summary Get a user with their aliyot and totals
// @Tags aliyot
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} service.UserLedger
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/user/{userId}/details [get]
func (h *AliyahHandler) UserDetails(c echo.Context) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	details, err := h.ledger.UserDetails(c.Request().Context(), session(c), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, details)
}

// PayInFull godoc
// @Summary Pay the remaining balance of an aliyah
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Aliyah ID"
// @Param request body FullPaymentRequest true "Must be {\"isPaid\": true}"
// @Success 200 {object} model.Aliyah
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /aliyot/payment/{paymentId} [put]
func (h *AliyahHandler) PayInFull(c echo.Context) error {
	id, err := uuidParam(c, "paymentId")
	if err != nil {
		return err
	}
	var req FullPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if !*req.IsPaid {
		return badRequest("VALIDATION_ERROR", "isPaid must be true; use an edit to reopen an aliyah")
	}

	aliyah, err := h.payments.PayInFull(c.Request().Context(), session(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, aliyah)
}

// PayPartial godoc
// @Summary Record a partial payment
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Aliyah ID"
// @Param request body PartialPaymentRequest true "Payment amount"
// @Success 200 {object} model.Aliyah
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /aliyot/payment/{paymentId}/partial [post]
func (h *AliyahHandler) PayPartial(c echo.Context) error {
	id, err := uuidParam(c, "paymentId")
	if err != nil {
		return err
	}
	var req PartialPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	aliyah, err := h.payments.PayPartial(c.Request().Context(), session(c), id, *req.Amount, req.Note)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, aliyah)
}

// EditAliyah godoc
// @Summary Edit an aliyah
// @Description Raising the amount above what was paid reopens the aliyah.
// @Tags aliyot
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param debtId path string true "Aliyah ID"
// @Param request body EditAliyahRequest true "Fields to replace"
// @Success 200 {object} model.Aliyah
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /aliyot/debt/{debtId} [put]
func (h *AliyahHandler) EditAliyah(c echo.Context) error {
	id, err := uuidParam(c, "debtId")
	if err != nil {
		return err
	}
	var req EditAliyahRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Amount == nil && req.Parsha == nil && req.AliyaType == nil {
		return badRequest("VALIDATION_ERROR", "nothing to update")
	}

	aliyah, err := h.payments.EditAliyah(c.Request().Context(), session(c), id, service.EditFields{
		Amount:    req.Amount,
		Parsha:    req.Parsha,
		AliyaType: req.AliyaType,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, aliyah)
}

// DeleteAliyah godoc
// @Summary Delete an aliyah and its payment history
// @Tags aliyot
// @Produce json
// @Security BearerAuth
// @Param debtId path string true "Aliyah ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/debt/{debtId} [delete]
func (h *AliyahHandler) DeleteAliyah(c echo.Context) error {
	id, err := uuidParam(c, "debtId")
	if err != nil {
		return err
	}
	if err := h.payments.DeleteAliyah(c.Request().Context(), session(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "aliyah deleted"})
}

// PayBulkFull godoc
// @Summary Pay every unpaid aliyah of a user
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/user/{userId}/payment [put]
func (h *AliyahHandler) PayBulkFull(c echo.Context) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	result, err := h.payments.PayBulkFull(c.Request().Context(), session(c), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, result)
}

// PayBulkPartial godoc
// @Summary Spread a payment over a user's unpaid aliyot, oldest first
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body PartialPaymentRequest true "Total amount"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /aliyot/user/{userId}/payment/partial [post]
func (h *AliyahHandler) PayBulkPartial(c echo.Context) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	var req PartialPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.payments.PayBulkPartial(c.Request().Context(), session(c), userID, *req.Amount, req.Note)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, result)
}
