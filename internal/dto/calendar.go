package dto

// ── 日历模块 DTO ──

// SleepWindowRequest 设置睡眠时段请求
type SleepWindowRequest struct {
	StartTime       string `json:"start_time"        binding:"required"` // "23:00"
	EndTime         string `json:"end_time"          binding:"required"` // "07:00"
	Date            string `json:"date"`                                 // 可选：设置后立即重算该日
	TZOffsetMinutes int    `json:"tz_offset_minutes"`
}

// SleepWindowResponse 睡眠时段响应
type SleepWindowResponse struct {
	UserID    string          `json:"user_id"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Recompute *FanoutResponse `json:"recompute,omitempty"`
}

// ImportICSQuery ICS 导入参数
type ImportICSQuery struct {
	Date            string `form:"date"` // 可选：导入后立即重算该日
	TZOffsetMinutes int    `form:"tz_offset_minutes"`
}

// ImportICSResponse ICS 导入结果
type ImportICSResponse struct {
	Imported  int             `json:"imported"`
	Skipped   int             `json:"skipped"`
	Recompute *FanoutResponse `json:"recompute,omitempty"`
}
