package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeBalanceNotEnough  = 1001
	CodeInvalidTransition = 1002
	CodeDuplicateRequest  = 1003
	CodeKYCIncomplete     = 1004
	CodeBelowMinimum      = 1005
	CodeLimitReached      = 1006
	CodeStatusConflict    = 1007
	CodeSystemBusy        = 1008
	CodeAlreadyExists     = 1009
)

var codeMessages = map[int]string{
	CodeSuccess:           "success",
	CodeParamError:        "invalid parameters",
	CodeUnauthorized:      "authentication required",
	CodeForbidden:         "permission denied",
	CodeNotFound:          "resource not found",
	CodeServerError:       "internal server error",
	CodeBalanceNotEnough:  "insufficient balance",
	CodeInvalidTransition: "operation not allowed in the current state",
	CodeDuplicateRequest:  "duplicate request",
	CodeKYCIncomplete:     "bank account details are incomplete",
	CodeBelowMinimum:      "amount is below the minimum",
	CodeLimitReached:      "plan limit reached",
	CodeStatusConflict:    "status changed by another request",
	CodeSystemBusy:        "system busy, please retry",
	CodeAlreadyExists:     "already exists",
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	Success(c, PageData{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	})
}

func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData answers a failure that carries details, such as the
// required/available amounts of an insufficient-balance error.
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{
		Success: false,
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
