package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/staybook/staybook/internal/domain"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

func Error(c *gin.Context, status int, code, message string, details string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

// DomainError maps a domain error to its HTTP status. Internal causes
// never reach the client; only the kinded code and message do.
func DomainError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", "")
		return
	}
	Error(c, statusFor(de.Kind), de.Code, de.Message, "")
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindExternal:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
