package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	activitydomain "github.com/smallbiznis/carepoints/internal/activity/domain"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/authorization"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		code := "invalid_request"
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, pointsdomain.ErrNoAccount):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "no_account",
			Message: "user has no points account",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, activitydomain.ErrDuplicateActivity):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "duplicate_activity",
			Message: "activity already recorded for this period",
		}
	case errors.Is(err, redemptiondomain.ErrOutOfStock):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "out_of_stock",
			Message: "reward is out of stock",
		}
	case errors.Is(err, pointsdomain.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable_entity",
			Code:    "insufficient_points",
			Message: "not enough available points",
		}
	case isInactiveEntityError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable_entity",
			Code:    "inactive_entity",
			Message: "activity is not active",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the error type and code the client received.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isCatalogValidationError(err),
		isPointsValidationError(err),
		isActivityValidationError(err),
		isRedemptionValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, achievementdomain.ErrInvalidUser),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isCatalogValidationError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidCategory),
		errors.Is(err, catalogdomain.ErrInvalidFrequency),
		errors.Is(err, catalogdomain.ErrInvalidPoints),
		errors.Is(err, catalogdomain.ErrInvalidLevel),
		errors.Is(err, catalogdomain.ErrInvalidInventory):
		return true
	default:
		return false
	}
}

func isPointsValidationError(err error) bool {
	switch {
	case errors.Is(err, pointsdomain.ErrInvalidUser),
		errors.Is(err, pointsdomain.ErrInvalidAmount),
		errors.Is(err, pointsdomain.ErrInvalidEntry),
		errors.Is(err, pointsdomain.ErrInvalidReason):
		return true
	default:
		return false
	}
}

func isActivityValidationError(err error) bool {
	switch {
	case errors.Is(err, activitydomain.ErrInvalidUser),
		errors.Is(err, activitydomain.ErrInvalidActivity),
		errors.Is(err, activitydomain.ErrInvalidNotes),
		errors.Is(err, activitydomain.ErrInvalidProofURL),
		errors.Is(err, activitydomain.ErrInvalidStatus),
		errors.Is(err, activitydomain.ErrRecordNotPending):
		return true
	default:
		return false
	}
}

func isRedemptionValidationError(err error) bool {
	switch {
	case errors.Is(err, redemptiondomain.ErrInvalidUser),
		errors.Is(err, redemptiondomain.ErrInvalidReward),
		errors.Is(err, redemptiondomain.ErrInvalidStatus),
		errors.Is(err, redemptiondomain.ErrInvalidCode),
		errors.Is(err, redemptiondomain.ErrRedemptionNotActive),
		errors.Is(err, redemptiondomain.ErrRedemptionExpired):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidTimeRange) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrActivityNotFound),
		errors.Is(err, catalogdomain.ErrAchievementMissing),
		errors.Is(err, catalogdomain.ErrRewardNotFound),
		errors.Is(err, activitydomain.ErrRecordNotFound),
		errors.Is(err, redemptiondomain.ErrRedemptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isInactiveEntityError(err error) bool {
	return errors.Is(err, catalogdomain.ErrActivityInactive)
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "activity_record_not_pending":
		return "activity record was already reviewed"
	case "redemption_not_active":
		return "redemption is no longer active"
	case "redemption_expired":
		return "redemption has expired"
	default:
		return "invalid value"
	}
}
