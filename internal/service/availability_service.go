package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"groupsync/backend/config"
	"groupsync/backend/internal/availability"
	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/model"
	"groupsync/backend/internal/repository"
	pkgerrors "groupsync/backend/pkg/errors"
)

// AvailabilityService 群组空闲时间业务接口
type AvailabilityService interface {
	// Recalculate 重算 (群组, 日期) 的空闲窗口并整体替换已存储结果
	Recalculate(ctx context.Context, groupID string, day time.Time) ([]dto.AvailabilityWindowResponse, error)
	// Read 读取已存储窗口中包含 userID 的部分
	Read(ctx context.Context, groupID string, day time.Time, userID string) ([]dto.AvailabilityWindowResponse, error)
	// RecalculateForUser 重算用户所在全部群组的某日窗口，单个群组失败不影响其余群组
	RecalculateForUser(ctx context.Context, userID string, day time.Time) (*dto.FanoutResponse, error)
}

type availabilityService struct {
	repo     *repository.Repository
	searcher *availability.Searcher
	locker   KeyLocker
	timeout  time.Duration
	fanout   int
	logger   *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(cfg *config.AvailabilityConfig, repo *repository.Repository, locker KeyLocker, logger *zap.Logger) AvailabilityService {
	return &availabilityService{
		repo: repo,
		searcher: availability.NewSearcher(availability.SearchOptions{
			MaxCombinations: cfg.MaxCombinations,
			Workers:         cfg.SearchWorkers,
		}),
		locker:  locker,
		timeout: cfg.RecalcTimeout,
		fanout:  cfg.FanoutConcurrency,
		logger:  logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Recalculate — 重算并整体替换
// ═══════════════════════════════════════════════════════════
//
// 同一 (群组, 日期) 的并发调用不合并，逐个串行执行：
//   - 跨请求由 KeyLocker 串行
//   - 事务内再取 pg_advisory_xact_lock，成员与忙碌数据均在锁内读取，
//     后提交者一定基于其开始时已提交的最新数据计算
//   - 每次调用都在自己的 ctx 下运行，取消只影响调用方本身

func (s *availabilityService) Recalculate(ctx context.Context, groupID string, day time.Time) ([]dto.AvailabilityWindowResponse, error) {
	day = day.UTC()
	return s.recalculate(ctx, repository.LockKeyFor(groupID, day), groupID, day)
}

func (s *availabilityService) recalculate(ctx context.Context, key, groupID string, day time.Time) (result []dto.AvailabilityWindowResponse, err error) {
	started := time.Now()
	outcome := resultSuccess
	defer func() {
		if err != nil {
			outcome = resultError
		}
		recalcTotal.WithLabelValues(outcome).Inc()
		recalcDuration.Observe(time.Since(started).Seconds())
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		s.logger.Warn("获取重算锁失败", zap.String("group_id", groupID), zap.Error(err))
		return nil, err
	}
	defer unlock()

	d := availability.NewDay(day)
	var stored []model.AvailabilityWindow
	skipped := false

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Availability.LockKey(ctx, groupID, d.Start); err != nil {
			return err
		}

		members, err := txRepo.Group.ListMemberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		if len(members) < 2 {
			// 清空上一次的结果，存储始终等于最近一次重算的输出
			skipped = true
			return txRepo.Availability.DeleteByGroupAndDay(ctx, groupID, d.Start)
		}

		busy, err := txRepo.Calendar.ListBusyData(ctx, members, d.Start, d.End)
		if err != nil {
			return err
		}

		free, err := s.freeByUser(members, busy, d)
		if err != nil {
			return err
		}
		res, err := s.searcher.Search(ctx, members, free)
		if err != nil {
			return err
		}
		recalcCombinations.Observe(float64(res.Combinations))
		if res.Truncated {
			recalcTruncated.Inc()
			s.logger.Warn("子群搜索达到组合数上限，提前停止",
				zap.String("group_id", groupID),
				zap.Int("members", len(members)),
				zap.Int("combinations", res.Combinations),
			)
		}

		if err := txRepo.Availability.DeleteByGroupAndDay(ctx, groupID, d.Start); err != nil {
			return err
		}
		windows := buildWindowModels(groupID, d.Start, res.Windows, members)
		if err := txRepo.Availability.BatchCreate(ctx, windows); err != nil {
			return err
		}
		recalcWindows.Observe(float64(len(windows)))

		stored, err = txRepo.Availability.ListByGroupAndDay(ctx, groupID, d.Start)
		return err
	})
	if err != nil {
		s.logger.Error("重算群组空闲时间失败",
			zap.String("group_id", groupID),
			zap.Time("day", d.Start),
			zap.Error(err),
		)
		return nil, err
	}
	if skipped {
		outcome = resultSkipped
		return []dto.AvailabilityWindowResponse{}, nil
	}

	s.logger.Info("群组空闲时间已重算",
		zap.String("group_id", groupID),
		zap.Time("day", d.Start),
		zap.Int("windows", len(stored)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return toWindowResponses(stored), nil
}

// freeByUser 逐个成员计算当天空闲区间
// 任一成员的睡眠时段无法投影时整次重算失败，不把该成员当作整晚空闲
func (s *availabilityService) freeByUser(members []string, busy *repository.BusyData, d availability.Day) (map[string][]availability.Interval, error) {
	free := make(map[string][]availability.Interval, len(members))
	for _, id := range members {
		events := busy.Events[id]
		intervals := make([]availability.Interval, 0, len(events))
		for _, e := range events {
			intervals = append(intervals, availability.Interval{Start: e.StartTime.UTC(), End: e.EndTime.UTC()})
		}
		userFree, err := availability.UserFree(intervals, s.sleepWindowOf(busy.SleepWindows[id]), d)
		if err != nil {
			s.logger.Error("投影睡眠时段失败", zap.String("user_id", id), zap.Error(err))
			return nil, fmt.Errorf("计算用户 %s 的空闲时间: %w", id, err)
		}
		free[id] = userFree
	}
	return free, nil
}

// sleepWindowOf 将存储的睡眠时段转为引擎类型；格式异常时忽略并记录日志
func (s *availabilityService) sleepWindowOf(sw *model.SleepWindow) *availability.SleepWindow {
	if sw == nil {
		return nil
	}
	start, err := availability.ParseTimeOfDay(sw.StartTime)
	if err != nil {
		s.logger.Warn("睡眠时段格式异常，已忽略", zap.String("user_id", sw.UserID), zap.Error(err))
		return nil
	}
	end, err := availability.ParseTimeOfDay(sw.EndTime)
	if err != nil {
		s.logger.Warn("睡眠时段格式异常，已忽略", zap.String("user_id", sw.UserID), zap.Error(err))
		return nil
	}
	return &availability.SleepWindow{Start: start, End: end}
}

// buildWindowModels 预分配窗口 ID，并按计算顺序写入 seq、按成员顺序写入 position
func buildWindowModels(groupID string, day time.Time, windows []availability.Window, members []string) []model.AvailabilityWindow {
	position := make(map[string]int, len(members))
	for i, id := range members {
		position[id] = i
	}

	out := make([]model.AvailabilityWindow, 0, len(windows))
	for seq, w := range windows {
		id := uuid.NewString()
		participants := make([]model.AvailabilityParticipant, 0, len(w.Participants))
		for _, uid := range w.Participants {
			participants = append(participants, model.AvailabilityParticipant{
				WindowID: id,
				UserID:   uid,
				Position: position[uid],
			})
		}
		out = append(out, model.AvailabilityWindow{
			WindowID:     id,
			GroupID:      groupID,
			Day:          day,
			StartTime:    w.Start,
			EndTime:      w.End,
			Seq:          seq,
			Participants: participants,
		})
	}
	return out
}

// ═══════════════════════════════════════════════════════════
// Read — 按请求用户过滤
// ═══════════════════════════════════════════════════════════

// 窗口与参与者分多条语句加载，放在同一只读快照中读取，
// 避免并发重算提交后读到没有参与者的旧窗口
func (s *availabilityService) Read(ctx context.Context, groupID string, day time.Time, userID string) ([]dto.AvailabilityWindowResponse, error) {
	var windows []model.AvailabilityWindow
	err := s.repo.ReadOnly(ctx, func(txRepo *repository.Repository) error {
		var err error
		windows, err = txRepo.Availability.ListByGroupAndDay(ctx, groupID, day.UTC())
		return err
	})
	if err != nil {
		s.logger.Error("查询群组空闲窗口失败", zap.String("group_id", groupID), zap.Error(err))
		return nil, err
	}

	visible := make([]model.AvailabilityWindow, 0, len(windows))
	for i := range windows {
		if windows[i].HasParticipant(userID) {
			visible = append(visible, windows[i])
		}
	}
	return toWindowResponses(visible), nil
}

// ═══════════════════════════════════════════════════════════
// RecalculateForUser — 日历变更后的批量重算
// ═══════════════════════════════════════════════════════════

func (s *availabilityService) RecalculateForUser(ctx context.Context, userID string, day time.Time) (*dto.FanoutResponse, error) {
	day = day.UTC()
	groupIDs, err := s.repo.Group.ListGroupIDsByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户所在群组失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	errs := make([]error, len(groupIDs))
	var g errgroup.Group
	if s.fanout > 0 {
		g.SetLimit(s.fanout)
	}
	for i, gid := range groupIDs {
		i, gid := i, gid
		g.Go(func() error {
			// 各群组独立：错误记录在槽位中，不取消其余群组
			_, errs[i] = s.Recalculate(ctx, gid, day)
			return nil
		})
	}
	_ = g.Wait()

	resp := &dto.FanoutResponse{
		Day:       day,
		Succeeded: make([]string, 0, len(groupIDs)),
		Failed:    []dto.FanoutFailure{},
	}
	for i, gid := range groupIDs {
		if errs[i] == nil {
			resp.Succeeded = append(resp.Succeeded, gid)
			continue
		}
		fanoutFailures.Inc()
		s.logger.Warn("群组重算失败",
			zap.String("user_id", userID),
			zap.String("group_id", gid),
			zap.Error(errs[i]),
		)
		resp.Failed = append(resp.Failed, dto.FanoutFailure{GroupID: gid, Error: fanoutErrorMessage(errs[i])})
	}
	return resp, nil
}

// fanoutErrorMessage 对外只暴露可预期的错误原因
func fanoutErrorMessage(err error) string {
	switch {
	case errors.Is(err, pkgerrors.ErrLockTimeout):
		return pkgerrors.ErrLockTimeout.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "重算超时"
	case errors.Is(err, context.Canceled):
		return "请求已取消"
	default:
		return "重算失败"
	}
}

// ── 转换 ──

func toWindowResponses(windows []model.AvailabilityWindow) []dto.AvailabilityWindowResponse {
	out := make([]dto.AvailabilityWindowResponse, 0, len(windows))
	for _, w := range windows {
		participants := make([]dto.ParticipantResponse, 0, len(w.Participants))
		for _, p := range w.Participants {
			pr := dto.ParticipantResponse{ID: p.UserID}
			if p.User != nil {
				pr.Name = p.User.Name
				pr.Email = p.User.Email
			}
			participants = append(participants, pr)
		}
		out = append(out, dto.AvailabilityWindowResponse{
			ID:           w.WindowID,
			GroupID:      w.GroupID,
			Day:          w.Day.UTC(),
			StartTime:    w.StartTime.UTC(),
			EndTime:      w.EndTime.UTC(),
			Participants: participants,
		})
	}
	return out
}
