package dto

import (
	"errors"
	"time"
)

// ── 群组空闲时间模块 DTO ──

// ErrInvalidDay 日期或时区偏移不合法
var ErrInvalidDay = errors.New("日期或时区偏移不合法")

const (
	dateLayout = "2006-01-02"
	// 有效时区偏移范围 UTC-14:00 ~ UTC+14:00
	maxTZOffsetMinutes = 14 * 60
)

// ResolveDay 将客户端的日期与时区偏移解析为当地零点对应的 UTC 时刻
//
// tzOffsetMinutes 为当地时间相对 UTC 的分钟数（东八区为 480）。
// 例：date=2025-03-10, tzOffsetMinutes=480 → 2025-03-09T16:00:00Z
func ResolveDay(date string, tzOffsetMinutes int) (time.Time, error) {
	if tzOffsetMinutes < -maxTZOffsetMinutes || tzOffsetMinutes > maxTZOffsetMinutes {
		return time.Time{}, ErrInvalidDay
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return d.Add(-time.Duration(tzOffsetMinutes) * time.Minute).UTC(), nil
}

// RecalculateRequest 触发重算请求
type RecalculateRequest struct {
	Date            string `json:"date"              binding:"required"` // "2025-03-10"
	TZOffsetMinutes int    `json:"tz_offset_minutes"`
}

// AvailabilityQuery 查询/导出空闲窗口的参数
type AvailabilityQuery struct {
	Date            string `form:"date"              binding:"required"`
	TZOffsetMinutes int    `form:"tz_offset_minutes"`
}

// ParticipantResponse 窗口参与者
type ParticipantResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AvailabilityWindowResponse 群组空闲窗口响应
type AvailabilityWindowResponse struct {
	ID           string                `json:"id"`
	GroupID      string                `json:"group_id"`
	Day          time.Time             `json:"day"`
	StartTime    time.Time             `json:"start_time"`
	EndTime      time.Time             `json:"end_time"`
	Participants []ParticipantResponse `json:"participants"`
}

// ParticipantIDs 参与者 ID 列表
func (r *AvailabilityWindowResponse) ParticipantIDs() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// FanoutFailure 单个群组的重算失败信息
type FanoutFailure struct {
	GroupID string `json:"group_id"`
	Error   string `json:"error"`
}

// FanoutResponse 用户所在全部群组的重算结果
// 各群组相互独立：部分失败不影响其余群组
type FanoutResponse struct {
	Day       time.Time       `json:"day"`
	Succeeded []string        `json:"succeeded"`
	Failed    []FanoutFailure `json:"failed"`
}
