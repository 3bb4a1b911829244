package handlers

import (
	"spsc-cashround/internal/core/services"
	"spsc-cashround/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DeductionHandler handles deduction rule endpoints
type DeductionHandler struct {
	deductionService *services.DeductionService
}

// NewDeductionHandler creates a new deduction handler
func NewDeductionHandler(deductionService *services.DeductionService) *DeductionHandler {
	return &DeductionHandler{
		deductionService: deductionService,
	}
}

// CreateRuleRequest represents create deduction rule request
type CreateRuleRequest struct {
	SectionID     uint     `json:"section_id" validate:"required"`
	AppliesTo     string   `json:"applies_to" validate:"required,oneof=recipient all_members specific"`
	TargetMembers []string `json:"target_members,omitempty" validate:"dive,required,max=20"`
	EffectiveFrom string   `json:"effective_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ListRules lists deduction rules of a round
// @Summary List deduction rules
// @Tags Deductions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param active query bool false "Only active rules" default(false)
// @Success 200 {object} response.Response
// @Router /cash-rounds/{id}/rules [get]
func (h *DeductionHandler) ListRules(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to list deduction rules")
	}

	rules, err := h.deductionService.ListRules(c.Context(), id, c.QueryBool("active", false))
	if err != nil {
		return handleError(c, err, "Failed to list deduction rules")
	}

	return response.Success(c, "Deduction rules retrieved successfully", fiber.Map{
		"rules": rules,
	})
}

// CreateRule creates a deduction rule
// @Summary Create deduction rule
// @Description Bind a ledger section amount to the recipient, all members or specific members (Officer only)
// @Tags Deductions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Cash round ID"
// @Param body body CreateRuleRequest true "Rule"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cash-rounds/{id}/rules [post]
func (h *DeductionHandler) CreateRule(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err, "Failed to create deduction rule")
	}

	var req CreateRuleRequest
	if err := parseBody(c, &req, false); err != nil {
		return handleError(c, err, "Failed to create deduction rule")
	}
	effective, _ := parseDate(req.EffectiveFrom)

	rule, err := h.deductionService.CreateRule(c.Context(), id, services.CreateRuleInput{
		SectionID:     req.SectionID,
		AppliesTo:     req.AppliesTo,
		TargetMembers: req.TargetMembers,
		EffectiveFrom: effective,
	}, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to create deduction rule")
	}

	return response.Created(c, "Deduction rule created successfully", fiber.Map{
		"rule": rule,
	})
}

// DeactivateRule deactivates a deduction rule
// @Summary Deactivate deduction rule
// @Tags Deductions
// @Produce json
// @Security BearerAuth
// @Param rule_id path int true "Rule ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /deduction-rules/{rule_id}/deactivate [put]
func (h *DeductionHandler) DeactivateRule(c *fiber.Ctx) error {
	id, err := paramID(c, "rule_id")
	if err != nil {
		return handleError(c, err, "Failed to deactivate deduction rule")
	}

	rule, err := h.deductionService.DeactivateRule(c.Context(), id, actorFrom(c))
	if err != nil {
		return handleError(c, err, "Failed to deactivate deduction rule")
	}

	return response.Success(c, "Deduction rule deactivated successfully", fiber.Map{
		"rule": rule,
	})
}

// CycleDeductions reports the deductions of a cycle
// @Summary Cycle deductions
// @Description Live preview for an open cycle, recorded lines for a finalized one
// @Tags Deductions
// @Produce json
// @Security BearerAuth
// @Param cycle_id path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cycles/{cycle_id}/deductions [get]
func (h *DeductionHandler) CycleDeductions(c *fiber.Ctx) error {
	id, err := paramID(c, "cycle_id")
	if err != nil {
		return handleError(c, err, "Failed to get cycle deductions")
	}

	report, err := h.deductionService.CycleDeductions(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get cycle deductions")
	}

	return response.Success(c, "Cycle deductions retrieved successfully", report)
}
