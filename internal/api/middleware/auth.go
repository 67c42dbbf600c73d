package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupsync/backend/pkg/response"
)

// UserIDHeader 上游网关完成认证后注入的用户标识头
const UserIDHeader = "X-User-ID"

// UserIdentity 请求用户识别中间件
// 认证由上游网关负责，这里只校验 X-User-ID 为合法 UUID 并注入上下文
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if raw == "" {
			response.Unauthorized(c, 10002, "缺少用户标识")
			c.Abort()
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			response.Unauthorized(c, 10002, "用户标识格式无效")
			c.Abort()
			return
		}

		c.Set("user_id", id.String())
		c.Next()
	}
}
