package model

import "time"

// AvailabilityWindow 群组空闲窗口表 — 对应 availability_windows
// 由重算流程整体删除重建，没有其他修改入口
type AvailabilityWindow struct {
	WindowID  string    `gorm:"type:uuid;primaryKey"               json:"window_id"`
	GroupID   string    `gorm:"type:uuid;not null"                 json:"group_id"`
	Day       time.Time `gorm:"not null"                           json:"day"` // 当天起始 UTC 时刻
	StartTime time.Time `gorm:"not null"                           json:"start_time"`
	EndTime   time.Time `gorm:"not null"                           json:"end_time"`
	Seq       int       `gorm:"type:integer;not null"              json:"seq"` // 计算结果中的顺序
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// 关联
	Participants []AvailabilityParticipant `gorm:"foreignKey:WindowID;references:WindowID" json:"participants,omitempty"`
}

func (AvailabilityWindow) TableName() string { return "availability_windows" }

// ParticipantIDs 参与者 ID 列表（保持存储顺序）
func (w *AvailabilityWindow) ParticipantIDs() []string {
	ids := make([]string, 0, len(w.Participants))
	for _, p := range w.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant 判断用户是否在该窗口的参与者中
func (w *AvailabilityWindow) HasParticipant(userID string) bool {
	for _, p := range w.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AvailabilityParticipant 空闲窗口参与者表 — 对应 availability_participants
type AvailabilityParticipant struct {
	WindowID string `gorm:"type:uuid;primaryKey"          json:"window_id"`
	UserID   string `gorm:"type:uuid;primaryKey"          json:"user_id"`
	Position int    `gorm:"type:smallint;not null"        json:"position"` // 成员在群组中的排序位置

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

func (AvailabilityParticipant) TableName() string { return "availability_participants" }
