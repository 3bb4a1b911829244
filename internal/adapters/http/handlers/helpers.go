package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"
	"spsc-cashround/internal/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// getClientIP gets client IP address
func getClientIP(c *fiber.Ctx) string {
	ip := c.Get("X-Real-IP")
	if ip == "" {
		ip = c.Get("X-Forwarded-For")
	}
	if ip == "" {
		ip = c.IP()
	}
	return ip
}

// actorFrom builds the history actor from the authenticated user
func actorFrom(c *fiber.Ctx) domain.Actor {
	userID, _ := c.Locals("userID").(uint)
	membNo, _ := c.Locals("membNo").(string)
	return domain.Actor{
		UserID:    userID,
		MembNo:    membNo,
		IPAddress: getClientIP(c),
	}
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, name)
	}
	return uint(id), nil
}

// parseDate parses an optional YYYY-MM-DD value
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return &t, nil
}

// parseBody parses and validates a JSON body. An empty body is allowed when
// optional is true.
func parseBody(c *fiber.Ctx, req any, optional bool) error {
	if len(c.Body()) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
	}
	if err := c.BodyParser(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	return validateStruct(req)
}

// ===== Validation =====

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// decimal.Decimal is a struct, so the check reads the field directly
		_ = validate.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
			value, ok := fl.Field().Interface().(decimal.Decimal)
			return ok && value.IsPositive()
		})
	})
	return validate
}

func validateStruct(req any) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: '%s' is required", domain.ErrInvalidInput, field)
	case "max":
		return fmt.Errorf("%w: '%s' must be at most %s", domain.ErrInvalidInput, field, fe.Param())
	case "min":
		return fmt.Errorf("%w: '%s' must be at least %s", domain.ErrInvalidInput, field, fe.Param())
	case "oneof":
		return fmt.Errorf("%w: '%s' must be one of [%s]", domain.ErrInvalidInput, field, fe.Param())
	case "datetime":
		return fmt.Errorf("%w: '%s' must be a date (YYYY-MM-DD)", domain.ErrInvalidInput, field)
	case "positive_decimal":
		return fmt.Errorf("%w: '%s' must be greater than 0", domain.ErrInvalidInput, field)
	}
	return fmt.Errorf("%w: '%s' failed on '%s'", domain.ErrInvalidInput, field, fe.Tag())
}

// ===== Error mapping =====

var ruleCodes = []struct {
	err  error
	code string
}{
	{domain.ErrCycleInProgress, "CYCLE_IN_PROGRESS"},
	{domain.ErrNoSchedule, "NO_SCHEDULE"},
	{domain.ErrEmptySchedule, "EMPTY_SCHEDULE"},
	{domain.ErrAlreadyStarted, "ALREADY_STARTED"},
	{domain.ErrNotOpen, "NOT_OPEN"},
	{domain.ErrDeleteBlocked, "DELETE_BLOCKED"},
	{domain.ErrScheduleExists, "SCHEDULE_EXISTS"},
	{domain.ErrInvalidTransition, "INVALID_TRANSITION"},
}

func ruleCode(err error) string {
	for _, rc := range ruleCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "RULE_VIOLATION"
}

// handleError maps service errors to HTTP responses
func handleError(c *fiber.Ctx, err error, fallback string) error {
	var ruleErr *domain.RuleError
	switch {
	case errors.Is(err, domain.ErrRoundBusy):
		return response.Locked(c, "Cash round is busy, please retry")

	case errors.As(err, &ruleErr):
		return response.ErrorWithDetails(c, fiber.StatusConflict, ruleErr.Error(), fiber.Map{
			"code":     ruleCode(ruleErr),
			"round_id": ruleErr.RoundID,
			"status":   ruleErr.Status,
		})

	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidOrder):
		return response.BadRequest(c, err.Error())

	case errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrCycleNotFound),
		errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrSectionNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrMemberNotInRound):
		return response.NotFound(c, err.Error())

	case errors.Is(err, domain.ErrMemberAlreadyActive):
		return response.Conflict(c, err.Error())
	}

	logger.Log.WithError(err).WithField("path", c.Path()).Error("❌ " + fallback)
	return response.InternalServerError(c, fallback)
}
