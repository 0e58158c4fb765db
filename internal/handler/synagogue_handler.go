package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"synagogue/internal/model"
	"synagogue/internal/service"
)

// SynagogueHandler handles synagogue location endpoints.
type SynagogueHandler struct {
	svc service.SynagogueService
	log *zap.Logger
}

// NewSynagogueHandler creates a new synagogue handler.
func NewSynagogueHandler(svc service.SynagogueService, log *zap.Logger) *SynagogueHandler {
	return &SynagogueHandler{svc: svc, log: log}
}

// SynagogueRequest represents a synagogue and its weekly prayer hours.
type SynagogueRequest struct {
	Name      string             `json:"name" validate:"required,max=255"`
	Address   string             `json:"address" validate:"max=255"`
	City      string             `json:"city" validate:"max=100"`
	Latitude  float64            `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64            `json:"longitude" validate:"gte=-180,lte=180"`
	GeonameID int                `json:"geonameId" validate:"gte=0"`
	Timezone  string             `json:"timezone" validate:"omitempty,timezone"`
	Prayers   []model.PrayerTime `json:"prayers" validate:"dive"`
	Notes     string             `json:"notes"`
}

func (r SynagogueRequest) toModel() *model.Synagogue {
	return &model.Synagogue{
		Name:      r.Name,
		Address:   r.Address,
		City:      r.City,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		GeonameID: r.GeonameID,
		Timezone:  r.Timezone,
		Prayers:   r.Prayers,
		Notes:     r.Notes,
	}
}

// ListSynagogues godoc
// @Summary List synagogues
// @Tags synagogues
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Synagogue
// @Failure 401 {object} errors.ErrorResponse
// @Router /synagogues [get]
func (h *SynagogueHandler) ListSynagogues(c echo.Context) error {
	synagogues, err := h.svc.List(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, synagogues)
}

// GetSynagogue godoc
// @Summary Get a synagogue
// @Tags synagogues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Synagogue ID"
// @Success 200 {object} model.Synagogue
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /synagogues/{id} [get]
func (h *SynagogueHandler) GetSynagogue(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	synagogue, err := h.svc.Get(c.Request().Context(), session(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, synagogue)
}

// CreateSynagogue godoc
// @Summary Create a synagogue
// @Tags synagogues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SynagogueRequest true "Synagogue data"
// @Success 201 {object} model.Synagogue
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /synagogues [post]
func (h *SynagogueHandler) CreateSynagogue(c echo.Context) error {
	var req SynagogueRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	synagogue, err := h.svc.Create(c.Request().Context(), session(c), req.toModel())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, synagogue)
}

// UpdateSynagogue godoc
// @Summary Replace a synagogue
// @Tags synagogues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Synagogue ID"
// @Param request body SynagogueRequest true "Synagogue data"
// @Success 200 {object} model.Synagogue
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /synagogues/{id} [put]
func (h *SynagogueHandler) UpdateSynagogue(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req SynagogueRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	synagogue, err := h.svc.Update(c.Request().Context(), session(c), id, req.toModel())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, synagogue)
}

// DeleteSynagogue godoc
// @Summary Delete a synagogue
// @Tags synagogues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Synagogue ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /synagogues/{id} [delete]
func (h *SynagogueHandler) DeleteSynagogue(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), session(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "synagogue deleted"})
}
