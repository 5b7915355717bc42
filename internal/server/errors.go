package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/approval"
	auditdomain "github.com/smallbiznis/ndpcatalog/internal/audit/domain"
	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	"github.com/smallbiznis/ndpcatalog/internal/identity"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
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
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
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

	var cleanupErr *approval.PostMigrationCleanupError
	if errors.As(err, &cleanupErr) {
		return http.StatusInternalServerError, errorPayload{
			Type: approval.ErrPostMigrationCleanup.Error(),
			Message: fmt.Sprintf("dataset %s was published as %s but the staging copy could not be removed",
				cleanupErr.DatasetID, cleanupErr.RemoteID),
		}
	}

	switch {
	case isAuthenticationError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, approval.ErrNotAuthorized),
		errors.Is(err, datasetdomain.ErrNotAuthorized):
		return http.StatusForbidden, errorPayload{
			Type:    "not_authorized",
			Message: "not authorized",
		}
	case errors.Is(err, approval.ErrApprovalInProgress):
		return http.StatusConflict, errorPayload{
			Type:    approval.ErrApprovalInProgress.Error(),
			Message: "an approval for this dataset is already running",
		}
	case errors.Is(err, approval.ErrAlreadyDeleted):
		return http.StatusConflict, errorPayload{
			Type:    approval.ErrAlreadyDeleted.Error(),
			Message: "dataset is already deleted",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, remotecatalog.ErrRemoteTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    remotecatalog.ErrRemoteTimeout.Error(),
			Message: "remote catalog did not answer in time",
		}
	case isRemoteError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    remoteErrorType(err),
			Message: "remote catalog request failed",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusGatewayTimeout:
		return "internal_error", code
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return "remote_error", code
	default:
		return "client_error", code
	}
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
	case errors.Is(err, ErrInvalidRequest),
		datasetdomain.IsValidation(err),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

func isAuthenticationError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, accountdomain.ErrAuthentication) ||
		errors.Is(err, identity.ErrMissingToken) ||
		errors.Is(err, identity.ErrInvalidScheme) ||
		errors.Is(err, identity.ErrUnauthorized)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, datasetdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrOrganizationNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

var remoteErrors = []error{
	remotecatalog.ErrRemoteLookup,
	remotecatalog.ErrRemoteCreate,
	remotecatalog.ErrRemoteMembership,
	remotecatalog.ErrRemoteToken,
	remotecatalog.ErrRemoteDatasetCreate,
	remotecatalog.ErrRemoteUnavailable,
}

func isRemoteError(err error) bool {
	return remoteErrorType(err) != ""
}

func remoteErrorType(err error) string {
	for _, target := range remoteErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

var validationSentinels = []error{
	datasetdomain.ErrInvalidID,
	datasetdomain.ErrInvalidName,
	datasetdomain.ErrNameTaken,
	datasetdomain.ErrInvalidOwnerOrg,
	datasetdomain.ErrInvalidResource,
	orgdomain.ErrInvalidName,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case datasetdomain.ErrNameTaken.Error():
		return "name"
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
	case datasetdomain.ErrNameTaken.Error():
		return "that URL is already in use"
	default:
		return "invalid value"
	}
}
