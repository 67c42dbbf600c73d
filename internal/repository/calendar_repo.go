package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"groupsync/backend/internal/model"
)

// BusyData 一批用户在某天的忙碌数据
type BusyData struct {
	Events       map[string][]model.CalendarEvent // userID → 与当天相交的事件
	SleepWindows map[string]*model.SleepWindow    // userID → 睡眠时段（未配置则缺省）
}

// CalendarRepository 日历忙碌数据访问接口
type CalendarRepository interface {
	// ListBusyData 批量查询多名用户与 [dayStart, dayEnd] 相交的事件及其睡眠时段
	ListBusyData(ctx context.Context, userIDs []string, dayStart, dayEnd time.Time) (*BusyData, error)
	// ReplaceBySource 在事务中全量替换用户某一来源的事件：先删除旧数据，再批量插入新数据
	ReplaceBySource(ctx context.Context, userID, source string, events []model.CalendarEvent) error
	GetSleepWindow(ctx context.Context, userID string) (*model.SleepWindow, error)
	UpsertSleepWindow(ctx context.Context, sw *model.SleepWindow) error
}

type calendarRepo struct {
	db *gorm.DB
}

// NewCalendarRepo 创建 CalendarRepository 实例
func NewCalendarRepo(db *gorm.DB) CalendarRepository {
	return &calendarRepo{db: db}
}

func (r *calendarRepo) ListBusyData(ctx context.Context, userIDs []string, dayStart, dayEnd time.Time) (*BusyData, error) {
	data := &BusyData{
		Events:       make(map[string][]model.CalendarEvent, len(userIDs)),
		SleepWindows: make(map[string]*model.SleepWindow, len(userIDs)),
	}
	if len(userIDs) == 0 {
		return data, nil
	}

	var events []model.CalendarEvent
	err := r.db.WithContext(ctx).
		Where("user_id IN ? AND start_time <= ? AND end_time > ?", userIDs, dayEnd, dayStart).
		Order("user_id ASC, start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		data.Events[e.UserID] = append(data.Events[e.UserID], e)
	}

	var sleeps []model.SleepWindow
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&sleeps).Error; err != nil {
		return nil, err
	}
	for i := range sleeps {
		data.SleepWindows[sleeps[i].UserID] = &sleeps[i]
	}

	return data, nil
}

func (r *calendarRepo) ReplaceBySource(ctx context.Context, userID, source string, events []model.CalendarEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND source = ?", userID, source).
			Delete(&model.CalendarEvent{}).Error; err != nil {
			return err
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(&events, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *calendarRepo) GetSleepWindow(ctx context.Context, userID string) (*model.SleepWindow, error) {
	var sw model.SleepWindow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sw).Error
	if err != nil {
		return nil, err
	}
	return &sw, nil
}

func (r *calendarRepo) UpsertSleepWindow(ctx context.Context, sw *model.SleepWindow) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_time", "end_time", "updated_at"}),
		}).
		Create(sw).Error
}
