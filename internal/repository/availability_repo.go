package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"groupsync/backend/internal/model"
)

// AvailabilityRepository 群组空闲窗口数据访问接口
type AvailabilityRepository interface {
	// LockKey 获取 (group, day) 的事务级咨询锁，事务结束时自动释放；必须在事务内调用
	LockKey(ctx context.Context, groupID string, day time.Time) error
	DeleteByGroupAndDay(ctx context.Context, groupID string, day time.Time) error
	// BatchCreate 批量写入窗口及其参与者关联
	BatchCreate(ctx context.Context, windows []model.AvailabilityWindow) error
	// ListByGroupAndDay 查询窗口（含参与者及用户信息），按计算顺序返回
	ListByGroupAndDay(ctx context.Context, groupID string, day time.Time) ([]model.AvailabilityWindow, error)
}

type availabilityRepo struct {
	db *gorm.DB
}

// NewAvailabilityRepo 创建 AvailabilityRepository 实例
func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

// LockKeyFor 生成 (group, day) 的锁键
func LockKeyFor(groupID string, day time.Time) string {
	return "availability:" + groupID + ":" + day.UTC().Format(time.RFC3339)
}

func (r *availabilityRepo) LockKey(ctx context.Context, groupID string, day time.Time) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", LockKeyFor(groupID, day)).Error
}

func (r *availabilityRepo) DeleteByGroupAndDay(ctx context.Context, groupID string, day time.Time) error {
	// 参与者关联由外键 ON DELETE CASCADE 一并删除
	return r.db.WithContext(ctx).
		Where("group_id = ? AND day = ?", groupID, day).
		Delete(&model.AvailabilityWindow{}).Error
}

func (r *availabilityRepo) BatchCreate(ctx context.Context, windows []model.AvailabilityWindow) error {
	if len(windows) == 0 {
		return nil
	}

	var participants []model.AvailabilityParticipant
	for _, w := range windows {
		for _, p := range w.Participants {
			participants = append(participants, model.AvailabilityParticipant{
				WindowID: w.WindowID,
				UserID:   p.UserID,
				Position: p.Position,
			})
		}
	}

	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).CreateInBatches(&windows, 200).Error; err != nil {
		return err
	}
	if len(participants) > 0 {
		if err := db.CreateInBatches(&participants, 500).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *availabilityRepo) ListByGroupAndDay(ctx context.Context, groupID string, day time.Time) ([]model.AvailabilityWindow, error) {
	var windows []model.AvailabilityWindow
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Participants.User").
		Where("group_id = ? AND day = ?", groupID, day).
		Order("seq ASC").
		Find(&windows).Error
	return windows, err
}
