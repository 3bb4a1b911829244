package handlers

import (
	"spsc-cashround/internal/core/services"
	"spsc-cashround/internal/pkg/pagination"
	"spsc-cashround/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// RoundHandler handles cash round and membership endpoints
type RoundHandler struct {
	roundService *services.RoundService
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(roundService *services.RoundService) *RoundHandler {
	return &RoundHandler{
		roundService: roundService,
	}
}

// CreateRoundRequest represents create cash round request
type CreateRoundRequest struct {
	RoundNo         string                 `json:"round_no" validate:"omitempty,max=30"`
	Name            string                 `json:"name" validate:"required,max=150"`
	WeeklyAmount    decimal.Decimal        `json:"weekly_amount" validate:"positive_decimal"`
	StartDate       string                 `json:"start_date" validate:"required,datetime=2006-01-02"`
	ExpectedEndDate string                 `json:"expected_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes           string                 `json:"notes,omitempty"`
	Members         []services.MemberInput `json:"members" validate:"dive"`
}

// UpdateRoundRequest represents update cash round request
type UpdateRoundRequest struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=1,max=150"`
	WeeklyAmount    *decimal.Decimal `json:"weekly_amount,omitempty"`
	StartDate       *string          `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ExpectedEndDate *string          `json:"expected_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string          `json:"notes,omitempty"`
}

// Create creates a new cash round
// @Summary Create cash round
// @Description Create a planned cash round with its initial members (Officer only)
// @Tags CashRounds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateRoundRequest true "Cash round data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cash-rounds [post]
func (h *RoundHandler) Create(c *fiber.Ctx) error {
	var req CreateRoundRequest
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to create cash round")
	}

	start, _ := parseDate(req.StartDate)
	end, err := parseDate(req.ExpectedEndDate)
	if err != nil {
		return handleError(c, err, "Failed to create cash round")
	}

	round, err := h.roundService.Create(c.Context(), services.CreateRoundInput{
		RoundNo:         req.RoundNo,
		Name:            req.Name,
		WeeklyAmount:    req.WeeklyAmount,
		StartDate:       *start,
		ExpectedEndDate: end,
		Notes:           req.Notes,
		Members:         req.Members,
	}, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to create cash round")
	}

	return response.Created(c, "Cash round created successfully", fiber.Map{
		"cash_round": round,
	})
}

// List lists cash rounds
// @Summary List cash rounds
// @Description List cash rounds, newest first
// @Tags CashRounds
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "PLANNED, ACTIVE, COMPLETED or CANCELLED"
// @Param include_archived query bool false "Include archived rounds"
// @Success 200 {object} response.Response
// @Router /cash-rounds [get]
func (h *RoundHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	rounds, total, err := h.roundService.List(c.Context(), services.ListRoundsInput{
		Status:          c.Query("status"),
		IncludeArchived: c.QueryBool("include_archived", false),
		Offset:          params.Offset,
		Limit:           params.Limit,
	})
	if err != nil {
		return handleError(c, err, "Failed to list cash rounds")
	}

	return response.Success(c, "Cash rounds retrieved successfully", pagination.NewResponse(rounds, params, total))
}

// Get gets a cash round by ID
// @Summary Get cash round
// @Tags CashRounds
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cash-rounds/{id} [get]
func (h *RoundHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to get cash round")
	}

	round, err := h.roundService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get cash round")
	}

	return response.Success(c, "Cash round retrieved successfully", fiber.Map{
		"cash_round": round,
	})
}

// Update updates a cash round
// @Summary Update cash round
// @Description Edit details of a planned or active round (Officer only)
// @Tags CashRounds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body UpdateRoundRequest true "Fields to change"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id} [put]
func (h *RoundHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to update cash round")
	}

	var req UpdateRoundRequest
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to update cash round")
	}

	input := services.UpdateRoundInput{
		Name:         req.Name,
		WeeklyAmount: req.WeeklyAmount,
		Notes:        req.Notes,
	}
	if req.StartDate != nil {
		input.StartDate, _ = parseDate(*req.StartDate)
	}
	if req.ExpectedEndDate != nil {
		input.ExpectedEndDate, _ = parseDate(*req.ExpectedEndDate)
	}

	round, err := h.roundService.Update(c.Context(), id, input, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to update cash round")
	}

	return response.Success(c, "Cash round updated successfully", fiber.Map{
		"cash_round": round,
	})
}

// Delete deletes a cash round
// @Summary Delete cash round
// @Description Hard delete a planned or cancelled round that never had a cycle (Admin only)
// @Tags CashRounds
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id} [delete]
func (h *RoundHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to delete cash round")
	}

	if err := h.roundService.Delete(c.Context(), id, actorFrom(c)); err != nil {
		return handleError(c, err, "Failed to delete cash round")
	}

	return response.Success(c, "Cash round deleted successfully", nil)
}

// Archive archives a closed cash round
// @Summary Archive cash round
// @Tags CashRounds
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/archive [post]
func (h *RoundHandler) Archive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to archive cash round")
	}

	round, err := h.roundService.Archive(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to archive cash round")
	}

	return response.Success(c, "Cash round archived successfully", fiber.Map{
		"cash_round": round,
	})
}

// History gets the event history of a round
// @Summary Cash round history
// @Tags CashRounds
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Success 200 {object} response.Response
// @Router /cash-rounds/{id}/history [get]
func (h *RoundHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to get history")
	}

	events, err := h.roundService.History(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get history")
	}

	return response.Success(c, "History retrieved successfully", fiber.Map{
		"events": events,
	})
}

// ListMembers lists members of a round
// @Summary List round members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param active query bool false "Only active members" default(true)
// @Success 200 {object} response.Response
// @Router /cash-rounds/{id}/members [get]
func (h *RoundHandler) ListMembers(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to list members")
	}

	members, err := h.roundService.ListMembers(c.Context(), id, c.QueryBool("active", true))
	if err != nil {
		return handleError(c, err, "Failed to list members")
	}

	return response.Success(c, "Members retrieved successfully", fiber.Map{
		"members": members,
	})
}

// AddMember adds a member to a round
// @Summary Add round member
// @Description Add an active member; appended to the end of the rotation when a schedule exists (Officer only)
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body services.MemberInput true "Member"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/members [post]
func (h *RoundHandler) AddMember(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to add member")
	}

	var req services.MemberInput
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to add member")
	}

	member, err := h.roundService.AddMember(c.Context(), id, req, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to add member")
	}

	return response.Created(c, "Member added successfully", fiber.Map{
		"member": member,
	})
}

// RemoveMember removes a member from a round
// @Summary Remove round member
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param memb_no path string true "Member number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /cash-rounds/{id}/members/{memb_no} [delete]
func (h *RoundHandler) RemoveMember(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to remove member")
	}

	if err := h.roundService.RemoveMember(c.Context(), id, c.Params("memb_no"), actorFrom(c)); err != nil {
		return handleError(c, err, "Failed to remove member")
	}

	return response.Success(c, "Member removed successfully", nil)
}
