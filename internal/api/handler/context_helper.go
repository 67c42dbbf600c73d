package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupsync/backend/internal/dto"
	"groupsync/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 UserIdentity 中间件未注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "缺少用户标识")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "缺少用户标识")
		return "", false
	}
	return s, true
}

// MustGetGroupID 读取并校验路径参数 :id
func MustGetGroupID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, 10001, "群组 ID 格式无效")
		return "", false
	}
	return id.String(), true
}

// MustResolveDay 将日期与时区偏移解析为当天起始 UTC 时刻，失败时写入 400
func MustResolveDay(c *gin.Context, date string, tzOffsetMinutes int) (time.Time, bool) {
	day, err := dto.ResolveDay(date, tzOffsetMinutes)
	if err != nil {
		response.BadRequest(c, 10001, "date 须为 YYYY-MM-DD，tz_offset_minutes 须在 -840~840 之间")
		return time.Time{}, false
	}
	return day, true
}
