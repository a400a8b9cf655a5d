package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeForbidden   = 403
	CodeServerError = 500
)

// Stable reason codes for rejected redemptions. Clients branch on these, so
// they never change meaning.
const (
	ReasonUnauthorized       = "unauthorized"
	ReasonCodeNotFound       = "code_not_found"
	ReasonAlreadyUsed        = "already_used"
	ReasonInsufficientPoints = "insufficient_points"
	ReasonTryAgain           = "try_again"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeParamError,
		Message: message,
	})
}

func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: message,
	})
}

func ServerError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:    CodeServerError,
		Message: message,
	})
}

// Rejected writes a redemption rejection: valid=false plus a stable reason
// code, with the HTTP status the mobile clients expect for that reason.
func Rejected(c *gin.Context, status int, reason string) {
	c.JSON(status, gin.H{
		"valid": false,
		"error": reason,
	})
}
