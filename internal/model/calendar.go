package model

import "time"

// 日历事件来源
const (
	EventSourceManual = "manual"
	EventSourceICS    = "ics"
)

// CalendarEvent 日历忙碌事件表 — 对应 calendar_events
type CalendarEvent struct {
	EventID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	UserID      string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Title       string    `gorm:"type:varchar(200)"                              json:"title,omitempty"`
	StartTime   time.Time `gorm:"not null"                                       json:"start_time"`
	EndTime     time.Time `gorm:"not null"                                       json:"end_time"`
	Source      string    `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"` // manual | ics
	ExternalUID string    `gorm:"type:varchar(255)"                              json:"external_uid,omitempty"`
	BaseModel
}

func (CalendarEvent) TableName() string { return "calendar_events" }

// SleepWindow 睡眠时段表 — 对应 sleep_windows
// 仅存储时刻（与日期无关），每位用户至多一条；EndTime <= StartTime 表示跨零点
type SleepWindow struct {
	SleepWindowID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"sleep_window_id"`
	UserID        string `gorm:"type:uuid;not null;uniqueIndex"                 json:"user_id"`
	StartTime     string `gorm:"type:time;not null"                             json:"start_time"` // "23:00"
	EndTime       string `gorm:"type:time;not null"                             json:"end_time"`   // "07:00"
	BaseModel
}

func (SleepWindow) TableName() string { return "sleep_windows" }
