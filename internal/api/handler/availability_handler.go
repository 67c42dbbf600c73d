package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/service"
	pkgerrors "groupsync/backend/pkg/errors"
	"groupsync/backend/pkg/response"
)

// AvailabilityHandler 群组空闲时间 HTTP 处理器
type AvailabilityHandler struct {
	availSvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availSvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availSvc: availSvc}
}

// Recalculate 重算群组某日的空闲窗口
// POST /api/v1/groups/:id/availability/recalculate
func (h *AvailabilityHandler) Recalculate(c *gin.Context) {
	groupID, ok := MustGetGroupID(c)
	if !ok {
		return
	}
	var req dto.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	day, ok := MustResolveDay(c, req.Date, req.TZOffsetMinutes)
	if !ok {
		return
	}

	windows, err := h.availSvc.Recalculate(c.Request.Context(), groupID, day)
	if err != nil {
		c.Error(err)
		handleRecalculateError(c, err)
		return
	}

	response.OKList(c, windows, len(windows))
}

// GetAvailability 获取群组某日中包含当前用户的空闲窗口
// GET /api/v1/groups/:id/availability?date=2025-03-10&tz_offset_minutes=480
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	groupID, ok := MustGetGroupID(c)
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	day, ok := MustResolveDay(c, q.Date, q.TZOffsetMinutes)
	if !ok {
		return
	}

	windows, err := h.availSvc.Read(c.Request.Context(), groupID, day, userID)
	if err != nil {
		c.Error(err)
		response.InternalError(c)
		return
	}

	response.OKList(c, windows, len(windows))
}

// RecalculateMine 重算当前用户所在全部群组的某日空闲窗口
// POST /api/v1/users/me/availability/recalculate
func (h *AvailabilityHandler) RecalculateMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	day, ok := MustResolveDay(c, req.Date, req.TZOffsetMinutes)
	if !ok {
		return
	}

	result, err := h.availSvc.RecalculateForUser(c.Request.Context(), userID, day)
	if err != nil {
		c.Error(err)
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// handleRecalculateError 区分"计算失败"与可重试的并发/超时情况
func handleRecalculateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrLockTimeout):
		response.Conflict(c, 20101, "该群组正在重算，请稍后重试")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusServiceUnavailable, 20102, "重算超时，请稍后重试")
	default:
		response.InternalError(c)
	}
}
