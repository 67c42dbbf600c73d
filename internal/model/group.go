package model

import "time"

// Group 群组表 — 对应 groups
type Group struct {
	GroupID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	Name    string `gorm:"type:varchar(100);not null"                     json:"name"`
	BaseModel

	// 关联
	Members []GroupMember `gorm:"foreignKey:GroupID;references:GroupID" json:"members,omitempty"`
}

func (Group) TableName() string { return "groups" }

// GroupMember 群组成员表 — 对应 group_members
type GroupMember struct {
	GroupID  string    `gorm:"type:uuid;primaryKey"               json:"group_id"`
	UserID   string    `gorm:"type:uuid;primaryKey"               json:"user_id"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

func (GroupMember) TableName() string { return "group_members" }
