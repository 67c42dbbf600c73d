package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"groupsync/backend/internal/availability"
	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/service"
	"groupsync/backend/pkg/response"
)

// CalendarHandler 用户日历 HTTP 处理器
// 写入成功且请求携带 date 时，立即重算用户所在群组当天的窗口
type CalendarHandler struct {
	calendarSvc service.CalendarService
	availSvc    service.AvailabilityService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService, availSvc service.AvailabilityService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc, availSvc: availSvc}
}

// ImportICS 导入 ICS 日历（请求体为原始 ICS 内容）
// POST /api/v1/users/me/calendar/ics?date=2025-03-10&tz_offset_minutes=480
func (h *CalendarHandler) ImportICS(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.ImportICSQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	recompute, day, ok := h.optionalDay(c, q.Date, q.TZOffsetMinutes)
	if !ok {
		return
	}

	result, err := h.calendarSvc.ImportICS(c.Request.Context(), userID, c.Request.Body)
	if err != nil {
		c.Error(err)
		handleCalendarError(c, err)
		return
	}

	if recompute {
		fanout, err := h.availSvc.RecalculateForUser(c.Request.Context(), userID, day)
		if err != nil {
			// 导入已成功，重算失败只记录
			c.Error(err)
		} else {
			result.Recompute = fanout
		}
	}

	response.OK(c, result)
}

// SetSleepWindow 设置每日睡眠时段
// PUT /api/v1/users/me/sleep-window
func (h *CalendarHandler) SetSleepWindow(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.SleepWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	recompute, day, ok := h.optionalDay(c, req.Date, req.TZOffsetMinutes)
	if !ok {
		return
	}

	result, err := h.calendarSvc.SetSleepWindow(c.Request.Context(), userID, req.StartTime, req.EndTime)
	if err != nil {
		c.Error(err)
		handleCalendarError(c, err)
		return
	}

	if recompute {
		fanout, err := h.availSvc.RecalculateForUser(c.Request.Context(), userID, day)
		if err != nil {
			c.Error(err)
		} else {
			result.Recompute = fanout
		}
	}

	response.OK(c, result)
}

// optionalDay date 为空时不重算
func (h *CalendarHandler) optionalDay(c *gin.Context, date string, tzOffsetMinutes int) (bool, time.Time, bool) {
	if date == "" {
		return false, time.Time{}, true
	}
	day, ok := MustResolveDay(c, date, tzOffsetMinutes)
	return ok, day, ok
}

func handleCalendarError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	case errors.Is(err, service.ErrICSParse):
		response.BadRequest(c, 21001, "ICS 格式解析失败")
	case errors.Is(err, availability.ErrInvalidTimeOfDay):
		response.BadRequest(c, 21002, "时刻格式错误，应为 HH:MM")
	case errors.Is(err, service.ErrInvalidSleepWindow):
		response.BadRequest(c, 21003, "睡眠开始与结束时刻不能相同")
	default:
		response.InternalError(c)
	}
}
