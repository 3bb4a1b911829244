package handlers

import (
	"spsc-cashround/internal/core/services"
	"spsc-cashround/internal/pkg/pagination"
	"spsc-cashround/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CycleHandler handles round lifecycle and cycle endpoints
type CycleHandler struct {
	orchestrator *services.CycleOrchestrator
}

// NewCycleHandler creates a new cycle handler
func NewCycleHandler(orchestrator *services.CycleOrchestrator) *CycleHandler {
	return &CycleHandler{
		orchestrator: orchestrator,
	}
}

// OpenCycleRequest represents the optional body of start / next cycle
type OpenCycleRequest struct {
	MeetingDate string `json:"meeting_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Remark      string `json:"remark,omitempty" validate:"max=500"`
}

// CancelCycleRequest represents the optional body of cancel cycle
type CancelCycleRequest struct {
	Remark string `json:"remark,omitempty" validate:"max=500"`
}

func (h *CycleHandler) openInput(c *fiber.Ctx) (services.OpenCycleInput, error) {
	var req OpenCycleRequest
	if err := parseBody(c, &req, true); err != nil {
		return services.OpenCycleInput{}, err
	}
	meeting, _ := parseDate(req.MeetingDate)
	return services.OpenCycleInput{MeetingDate: meeting, Remark: req.Remark}, nil
}

// StartRound starts a planned round
// @Summary Start cash round
// @Description Move a planned round to active and open cycle #1 (Officer only)
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body OpenCycleRequest false "Meeting date of cycle #1"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 423 {object} response.Response
// @Router /cash-rounds/{id}/start [post]
func (h *CycleHandler) StartRound(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to start cash round")
	}
	input, err := h.openInput(c)
	if err != nil {
		return handleError(c, err, "Failed to start cash round")
	}

	result, err := h.orchestrator.StartRound(c.Context(), id, input, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to start cash round")
	}

	return response.Created(c, "Cash round started successfully", result)
}

// StartNextCycle opens the next cycle
// @Summary Open next cycle
// @Description Open a cycle for the recipient at the rotation cursor (Officer only)
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body OpenCycleRequest false "Meeting date"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 423 {object} response.Response
// @Router /cash-rounds/{id}/cycles [post]
func (h *CycleHandler) StartNextCycle(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to open cycle")
	}
	input, err := h.openInput(c)
	if err != nil {
		return handleError(c, err, "Failed to open cycle")
	}

	result, err := h.orchestrator.StartNextCycle(c.Context(), id, input, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to open cycle")
	}

	return response.Created(c, "Cycle opened successfully", result)
}

// ListCycles lists cycles of a round
// @Summary List cycles
// @Tags Cycles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param order query string false "Sequence order" Enums(asc, desc) default(desc)
// @Success 200 {object} response.Response
// @Router /cash-rounds/{id}/cycles [get]
func (h *CycleHandler) ListCycles(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to list cycles")
	}
	params := pagination.GetParams(c)

	cycles, total, err := h.orchestrator.ListCycles(c.Context(), id, params.Offset, params.Limit, params.Ascending())
	if err != nil {
		return handleError(c, err, "Failed to list cycles")
	}

	return response.Success(c, "Cycles retrieved successfully", pagination.NewResponse(cycles, params, total))
}

// CurrentCycle gets the open cycle of a round
// @Summary Current cycle
// @Tags Cycles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cash-rounds/{id}/cycles/current [get]
func (h *CycleHandler) CurrentCycle(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to get current cycle")
	}

	result, err := h.orchestrator.CurrentCycle(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get current cycle")
	}

	return response.Success(c, "Current cycle retrieved successfully", result)
}

// CompleteRound completes an active round
// @Summary Complete cash round
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/complete [post]
func (h *CycleHandler) CompleteRound(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to complete cash round")
	}

	round, err := h.orchestrator.CompleteRound(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to complete cash round")
	}

	return response.Success(c, "Cash round completed successfully", fiber.Map{
		"cash_round": round,
	})
}

// CancelRound cancels a planned or active round
// @Summary Cancel cash round
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/cancel [post]
func (h *CycleHandler) CancelRound(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to cancel cash round")
	}

	round, err := h.orchestrator.CancelRound(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to cancel cash round")
	}

	return response.Success(c, "Cash round cancelled successfully", fiber.Map{
		"cash_round": round,
	})
}

// GetCycle gets a cycle with its deductions
// @Summary Get cycle
// @Tags Cycles
// @Produce json
// @Security BearerAuth
// @Param cycle_id path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cycles/{cycle_id} [get]
func (h *CycleHandler) GetCycle(c *fiber.Ctx) error {
	id, err := paramID(c, "cycle_id")
	if err != nil {
		return handleError(c, err, "Failed to get cycle")
	}

	result, err := h.orchestrator.GetCycle(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get cycle")
	}

	return response.Success(c, "Cycle retrieved successfully", result)
}

// FinalizeCycle finalizes an open cycle
// @Summary Finalize cycle
// @Description Record deductions, advance the rotation and close the cycle (Officer only)
// @Tags Cycles
// @Produce json
// @Security BearerAuth
// @Param cycle_id path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 423 {object} response.Response
// @Router /cycles/{cycle_id}/finalize [post]
func (h *CycleHandler) FinalizeCycle(c *fiber.Ctx) error {
	id, err := paramID(c, "cycle_id")
	if err != nil {
		return handleError(c, err, "Failed to finalize cycle")
	}

	result, err := h.orchestrator.FinalizeCycle(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to finalize cycle")
	}

	return response.Success(c, "Cycle finalized successfully", result)
}

// CancelCycle cancels an open cycle
// @Summary Cancel cycle
// @Description Abandon an open cycle; the same recipient is due next (Officer only)
// @Tags Cycles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cycle_id path int true "Cycle ID"
// @Param body body CancelCycleRequest false "Remark"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cycles/{cycle_id}/cancel [post]
func (h *CycleHandler) CancelCycle(c *fiber.Ctx) error {
	id, err := paramID(c, "cycle_id")
	if err != nil {
		return handleError(c, err, "Failed to cancel cycle")
	}

	var req CancelCycleRequest
	if err := parseBody(c, &req, true); err != nil {
		return handleError(c, err, "Failed to cancel cycle")
	}

	result, err := h.orchestrator.CancelCycle(c.Context(), id, req.Remark, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to cancel cycle")
	}

	return response.Success(c, "Cycle cancelled successfully", result)
}
