package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"groupsync/backend/internal/model"
	"groupsync/backend/internal/repository"
)

// ── Mock GroupRepository ──

type mockGroupRepo struct {
	mu       sync.Mutex
	members  map[string][]string // groupID → userIDs
	listErr  map[string]error    // groupID → ListMemberIDs 返回的错误
	groupErr error               // ListGroupIDsByUser 返回的错误
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{
		members: make(map[string][]string),
		listErr: make(map[string]error),
	}
}

func (m *mockGroupRepo) ListMemberIDs(_ context.Context, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErr[groupID]; err != nil {
		return nil, err
	}
	ids := append([]string(nil), m.members[groupID]...)
	sort.Strings(ids)
	return ids, nil
}

func (m *mockGroupRepo) ListGroupIDsByUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupErr != nil {
		return nil, m.groupErr
	}
	var ids []string
	for gid, members := range m.members {
		for _, uid := range members {
			if uid == userID {
				ids = append(ids, gid)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock CalendarRepository ──

type mockCalendarRepo struct {
	mu      sync.Mutex
	events  map[string][]model.CalendarEvent
	sleeps  map[string]*model.SleepWindow
	listErr error

	// beforeList 在 ListBusyData 读取前调用（不持有 mu），用于在读取点挂起调用
	beforeList func()
}

func newMockCalendarRepo() *mockCalendarRepo {
	return &mockCalendarRepo{
		events: make(map[string][]model.CalendarEvent),
		sleeps: make(map[string]*model.SleepWindow),
	}
}

func (m *mockCalendarRepo) addEvent(userID string, start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[userID] = append(m.events[userID], model.CalendarEvent{
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
		Source:    model.EventSourceManual,
	})
}

func (m *mockCalendarRepo) ListBusyData(_ context.Context, userIDs []string, dayStart, dayEnd time.Time) (*repository.BusyData, error) {
	if m.beforeList != nil {
		m.beforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	data := &repository.BusyData{
		Events:       make(map[string][]model.CalendarEvent),
		SleepWindows: make(map[string]*model.SleepWindow),
	}
	for _, uid := range userIDs {
		for _, e := range m.events[uid] {
			if !e.StartTime.After(dayEnd) && e.EndTime.After(dayStart) {
				data.Events[uid] = append(data.Events[uid], e)
			}
		}
		if sw, ok := m.sleeps[uid]; ok {
			data.SleepWindows[uid] = sw
		}
	}
	return data, nil
}

func (m *mockCalendarRepo) ReplaceBySource(_ context.Context, userID, source string, events []model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[userID][:0]
	for _, e := range m.events[userID] {
		if e.Source != source {
			kept = append(kept, e)
		}
	}
	m.events[userID] = append(kept, events...)
	return nil
}

func (m *mockCalendarRepo) GetSleepWindow(_ context.Context, userID string) (*model.SleepWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sw, ok := m.sleeps[userID]; ok {
		return sw, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCalendarRepo) UpsertSleepWindow(_ context.Context, sw *model.SleepWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sw
	m.sleeps[sw.UserID] = &cp
	return nil
}

// ── Mock AvailabilityRepository ──

type mockAvailabilityRepo struct {
	mu        sync.Mutex
	windows   map[string][]model.AvailabilityWindow // LockKeyFor(group, day) → windows
	users     map[string]*model.User
	createErr error
	listErr   error

	lockCalls   int
	deleteCalls int
	createCalls int
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{
		windows: make(map[string][]model.AvailabilityWindow),
		users:   make(map[string]*model.User),
	}
}

func (m *mockAvailabilityRepo) LockKey(_ context.Context, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	return nil
}

func (m *mockAvailabilityRepo) DeleteByGroupAndDay(_ context.Context, groupID string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	delete(m.windows, repository.LockKeyFor(groupID, day))
	return nil
}

func (m *mockAvailabilityRepo) BatchCreate(_ context.Context, windows []model.AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, w := range windows {
		key := repository.LockKeyFor(w.GroupID, w.Day)
		cp := w
		cp.Participants = append([]model.AvailabilityParticipant(nil), w.Participants...)
		m.windows[key] = append(m.windows[key], cp)
	}
	return nil
}

func (m *mockAvailabilityRepo) ListByGroupAndDay(_ context.Context, groupID string, day time.Time) ([]model.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	stored := m.windows[repository.LockKeyFor(groupID, day)]
	out := make([]model.AvailabilityWindow, 0, len(stored))
	for _, w := range stored {
		cp := w
		cp.Participants = make([]model.AvailabilityParticipant, len(w.Participants))
		for i, p := range w.Participants {
			p.User = m.users[p.UserID]
			cp.Participants[i] = p
		}
		sort.SliceStable(cp.Participants, func(i, j int) bool {
			return cp.Participants[i].Position < cp.Participants[j].Position
		})
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *mockAvailabilityRepo) count(groupID string, day time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows[repository.LockKeyFor(groupID, day)])
}

// newMockRepository 以 mock 组装 Repository（无数据库连接，Transaction 直接执行）
func newMockRepository(g *mockGroupRepo, c *mockCalendarRepo, a *mockAvailabilityRepo) *repository.Repository {
	return &repository.Repository{
		Group:        g,
		Calendar:     c,
		Availability: a,
	}
}
