package handlers

import (
	"spsc-cashround/internal/core/services"
	"spsc-cashround/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ScheduleHandler handles rotation schedule endpoints
type ScheduleHandler struct {
	scheduleService *services.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

// CreateScheduleRequest represents create schedule request
type CreateScheduleRequest struct {
	Order     []string `json:"order" validate:"required,min=1,dive,required,max=20"`
	StartDate string   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ReorderRequest represents reorder schedule request
type ReorderRequest struct {
	Order []string `json:"order" validate:"required,min=1,dive,required,max=20"`
}

// Get gets the schedule of a round
// @Summary Get rotation schedule
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/schedule [get]
func (h *ScheduleHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to get schedule")
	}

	sched, err := h.scheduleService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get schedule")
	}

	return response.Success(c, "Schedule retrieved successfully", fiber.Map{
		"schedule": sched,
	})
}

// Create creates the schedule of a round
// @Summary Create rotation schedule
// @Description Order must be a permutation of the round's active members (Officer only)
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body CreateScheduleRequest true "Rotation order"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/schedule [post]
func (h *ScheduleHandler) Create(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to create schedule")
	}

	var req CreateScheduleRequest
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to create schedule")
	}
	start, _ := parseDate(req.StartDate)

	sched, err := h.scheduleService.Create(c.Context(), id, services.ScheduleInput{
		Order:     req.Order,
		StartDate: start,
	}, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to create schedule")
	}

	return response.Created(c, "Schedule created successfully", fiber.Map{
		"schedule": sched,
	})
}

// Reorder replaces the rotation order
// @Summary Reorder rotation schedule
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body ReorderRequest true "New rotation order"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/schedule [put]
func (h *ScheduleHandler) Reorder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to reorder schedule")
	}

	var req ReorderRequest
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to reorder schedule")
	}

	result, err := h.scheduleService.Reorder(c.Context(), id, req.Order, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to reorder schedule")
	}

	return response.Success(c, "Schedule reordered successfully", result)
}

// Delete deletes the schedule of a planned round
// @Summary Delete rotation schedule
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/schedule [delete]
func (h *ScheduleHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to delete schedule")
	}

	if err := h.scheduleService.Delete(c.Context(), id, actorFrom(c)); err != nil {
		return handleError(c, err, "Failed to delete schedule")
	}

	return response.Success(c, "Schedule deleted successfully", nil)
}

// Seed builds the rotation from member position hints
// @Summary Seed rotation schedule
// @Description Members with a position hint first, the rest by join time (Officer only)
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /cash-rounds/{id}/schedule/seed [post]
func (h *ScheduleHandler) Seed(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to seed schedule")
	}

	sched, err := h.scheduleService.Seed(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to seed schedule")
	}

	return response.Success(c, "Schedule seeded successfully", fiber.Map{
		"schedule": sched,
	})
}

// Rotation reports the current and next recipient
// @Summary Rotation status
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Router /cash-rounds/{id}/rotation [get]
func (h *ScheduleHandler) Rotation(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to get rotation")
	}

	status, err := h.scheduleService.Rotation(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get rotation")
	}

	return response.Success(c, "Rotation retrieved successfully", status)
}
