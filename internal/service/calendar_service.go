package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"groupsync/backend/internal/availability"
	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/model"
	"groupsync/backend/internal/repository"
)

// ── 日历模块业务错误 ──

var (
	ErrInvalidSleepWindow = errors.New("睡眠时段不合法：开始与结束时刻不能相同")
)

// CalendarService 用户忙碌数据维护接口
// 写入成功后由调用方触发 AvailabilityService.RecalculateForUser
type CalendarService interface {
	// ImportICS 以 ICS 内容全量替换用户的 ICS 来源事件
	ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportICSResponse, error)
	// SetSleepWindow 设置用户的每日睡眠时段（"HH:MM"，结束早于开始表示跨零点）
	SetSleepWindow(ctx context.Context, userID, start, end string) (*dto.SleepWindowResponse, error)
}

type calendarService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, logger: logger}
}

func (s *calendarService) ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportICSResponse, error) {
	parsed, err := ParseICS(reader, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Calendar.ReplaceBySource(ctx, userID, model.EventSourceICS, parsed.Events); err != nil {
		s.logger.Error("写入 ICS 事件失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 导入完成",
		zap.String("user_id", userID),
		zap.Int("imported", len(parsed.Events)),
		zap.Int("skipped", parsed.Skipped),
	)
	return &dto.ImportICSResponse{Imported: len(parsed.Events), Skipped: parsed.Skipped}, nil
}

func (s *calendarService) SetSleepWindow(ctx context.Context, userID, start, end string) (*dto.SleepWindowResponse, error) {
	st, err := availability.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	et, err := availability.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	if st == et {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSleepWindow, st)
	}

	sw := &model.SleepWindow{
		UserID:    userID,
		StartTime: st.String(),
		EndTime:   et.String(),
	}
	if err := s.repo.Calendar.UpsertSleepWindow(ctx, sw); err != nil {
		s.logger.Error("保存睡眠时段失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.SleepWindowResponse{
		UserID:    userID,
		StartTime: sw.StartTime,
		EndTime:   sw.EndTime,
	}, nil
}
