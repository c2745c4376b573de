package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError 带 HTTP 状态码的 API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError 包装底层错误为 API 错误
func NewAPIError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理链上通过 c.Error 上报的错误统一渲染;非 APIError 一律按 500 处理,
// 不向客户端透出内部细节以外的信息
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
}
