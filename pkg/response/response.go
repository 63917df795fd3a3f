// Package response 提供统一的 HTTP 响应格式。
// 错误响应由 errno 映射到 HTTP 状态码与双语消息。
package response

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/pkg/errors"
)

// Response is the standard response envelope.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK sends a successful response with data.
func OK(c *gin.Context, data any) {
	c.JSON(errors.OK.HTTPStatus(), &Response{
		Code:    errors.OK.Code,
		Message: errors.OK.Message(lang(c)),
		Data:    data,
	})
}

// Fail sends an error response. Unknown errors map to ErrInternal.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	c.JSON(e.HTTPStatus(), &Response{
		Code:    e.Code,
		Message: e.Message(lang(c)),
	})
}

// lang 从 Accept-Language 推断消息语言，仅区分中英文。
func lang(c *gin.Context) string {
	if strings.HasPrefix(c.GetHeader("Accept-Language"), "zh") {
		return "zh"
	}
	return "en"
}
