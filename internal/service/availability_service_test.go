package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"groupsync/backend/config"
	"groupsync/backend/internal/availability"
	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/model"
)

// ── 测试辅助 ──

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return testDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func testAvailabilityConfig() *config.AvailabilityConfig {
	return &config.AvailabilityConfig{
		MaxCombinations:   1000,
		SearchWorkers:     2,
		RecalcTimeout:     5 * time.Second,
		FanoutConcurrency: 2,
		LockTTL:           5 * time.Second,
	}
}

type availabilityFixture struct {
	svc      AvailabilityService
	groups   *mockGroupRepo
	calendar *mockCalendarRepo
	windows  *mockAvailabilityRepo
}

func setupTestAvailabilityService() *availabilityFixture {
	f := &availabilityFixture{
		groups:   newMockGroupRepo(),
		calendar: newMockCalendarRepo(),
		windows:  newMockAvailabilityRepo(),
	}
	repo := newMockRepository(f.groups, f.calendar, f.windows)
	f.svc = NewAvailabilityService(testAvailabilityConfig(), repo, newLocalKeyLocker(), zap.NewNop())
	return f
}

func (f *availabilityFixture) addMembers(groupID string, userIDs ...string) {
	for _, uid := range userIDs {
		f.groups.members[groupID] = append(f.groups.members[groupID], uid)
		f.windows.users[uid] = &model.User{UserID: uid, Name: "name-" + uid}
	}
}

// busyExcept 让用户在当天除 free 之外的时间都忙碌
func (f *availabilityFixture) busyExcept(userID string, free ...[2]time.Time) {
	cursor := testDay
	for _, fr := range free {
		if cursor.Before(fr[0]) {
			f.calendar.addEvent(userID, cursor, fr[0])
		}
		cursor = fr[1]
	}
	f.calendar.addEvent(userID, cursor, testDay.Add(24*time.Hour))
}

func span(h1, m1, h2, m2 int) [2]time.Time {
	return [2]time.Time{at(h1, m1), at(h2, m2)}
}

type windowShape struct {
	start, end   time.Time
	participants []string
}

func shapes(ws []dto.AvailabilityWindowResponse) []windowShape {
	out := make([]windowShape, 0, len(ws))
	for _, w := range ws {
		out = append(out, windowShape{start: w.StartTime, end: w.EndTime, participants: w.ParticipantIDs()})
	}
	return out
}

// ── Recalculate 测试 ──

func TestAvailabilityService_Recalculate_TwoUserScenario(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	f.calendar.addEvent("user-a", at(10, 0), at(11, 0))
	f.calendar.addEvent("user-b", at(14, 0), at(15, 0))

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}

	want := []windowShape{
		{at(0, 0), at(10, 0), []string{"user-a", "user-b"}},
		{at(11, 0), at(14, 0), []string{"user-a", "user-b"}},
		{at(15, 0), testDay.Add(24*time.Hour - time.Millisecond), []string{"user-a", "user-b"}},
	}
	if !reflect.DeepEqual(shapes(got), want) {
		t.Errorf("窗口不符\n期望: %+v\n实际: %+v", want, shapes(got))
	}
	for _, w := range got {
		if w.GroupID != "g1" || !w.Day.Equal(testDay) {
			t.Errorf("窗口归属错误: %+v", w)
		}
		if w.Participants[0].Name != "name-user-a" {
			t.Errorf("参与者应包含用户信息: %+v", w.Participants[0])
		}
	}
}

func TestAvailabilityService_Recalculate_PairFallback(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b", "user-c")
	f.busyExcept("user-a", span(9, 0, 10, 0), span(15, 0, 16, 0))
	f.busyExcept("user-b", span(9, 0, 10, 0))
	f.busyExcept("user-c", span(15, 0, 16, 0))

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}

	want := []windowShape{
		{at(9, 0), at(10, 0), []string{"user-a", "user-b"}},
		{at(15, 0), at(16, 0), []string{"user-a", "user-c"}},
	}
	if !reflect.DeepEqual(shapes(got), want) {
		t.Errorf("窗口不符\n期望: %+v\n实际: %+v", want, shapes(got))
	}
}

func TestAvailabilityService_Recalculate_SleepWindow(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	f.calendar.sleeps["user-a"] = &model.SleepWindow{UserID: "user-a", StartTime: "23:00", EndTime: "07:00"}
	f.calendar.sleeps["user-b"] = &model.SleepWindow{UserID: "user-b", StartTime: "00:30:00", EndTime: "08:00:00"}

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个窗口，实际 %d 个: %+v", len(got), shapes(got))
	}
	if !got[0].StartTime.Equal(at(8, 0)) || !got[0].EndTime.Equal(at(23, 0)) {
		t.Errorf("期望 08:00-23:00，实际 %v - %v", got[0].StartTime, got[0].EndTime)
	}
}

func TestAvailabilityService_Recalculate_InvalidSleepWindowIgnored(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	f.calendar.sleeps["user-a"] = &model.SleepWindow{UserID: "user-a", StartTime: "bad", EndTime: "07:00"}

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if len(got) != 1 || !got[0].StartTime.Equal(testDay) {
		t.Errorf("格式异常的睡眠时段应被忽略，实际: %+v", shapes(got))
	}
}

func TestAvailabilityService_Recalculate_Idempotent(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b", "user-c")
	f.busyExcept("user-a", span(9, 0, 10, 0), span(15, 0, 16, 0))
	f.busyExcept("user-b", span(9, 0, 10, 0))
	f.busyExcept("user-c", span(15, 0, 16, 0))

	first, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("第一次 Recalculate 失败: %v", err)
	}
	second, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("第二次 Recalculate 失败: %v", err)
	}

	if !reflect.DeepEqual(shapes(first), shapes(second)) {
		t.Errorf("两次结果不一致\n第一次: %+v\n第二次: %+v", shapes(first), shapes(second))
	}
	if n := f.windows.count("g1", testDay); n != len(second) {
		t.Errorf("存储中应只有最新一次的 %d 个窗口，实际 %d 个", len(second), n)
	}
}

func TestAvailabilityService_Recalculate_ReplacesStaleWindows(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")

	if _, err := f.svc.Recalculate(context.Background(), "g1", testDay); err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	f.calendar.addEvent("user-a", at(12, 0), at(13, 0))

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if len(got) != 2 || f.windows.count("g1", testDay) != 2 {
		t.Errorf("期望旧窗口被替换为 2 个新窗口，实际返回 %d 个，存储 %d 个", len(got), f.windows.count("g1", testDay))
	}
}

func TestAvailabilityService_Recalculate_FewerThanTwoMembers(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a")

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("单人群组不应返回错误: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("期望空列表，实际: %+v", got)
	}
	if f.windows.createCalls != 0 {
		t.Errorf("单人群组不应写入窗口，create=%d", f.windows.createCalls)
	}
}

func TestAvailabilityService_Recalculate_MemberLeftClearsStoredWindows(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")

	if _, err := f.svc.Recalculate(context.Background(), "g1", testDay); err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if f.windows.count("g1", testDay) != 1 {
		t.Fatalf("期望先存储 1 个窗口，实际 %d 个", f.windows.count("g1", testDay))
	}

	// user-b 退群后只剩一人
	f.groups.mu.Lock()
	f.groups.members["g1"] = []string{"user-a"}
	f.groups.mu.Unlock()

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("期望空列表，实际: %+v", shapes(got))
	}
	if n := f.windows.count("g1", testDay); n != 0 {
		t.Errorf("成员不足时应清空旧窗口，实际仍存储 %d 个", n)
	}

	read, err := f.svc.Read(context.Background(), "g1", testDay, "user-a")
	if err != nil {
		t.Fatalf("Read 失败: %v", err)
	}
	if len(read) != 0 {
		t.Errorf("不应再读到包含已退群成员的窗口，实际: %+v", shapes(read))
	}
}

func TestAvailabilityService_Recalculate_NoOverlapWritesEmptySet(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	f.busyExcept("user-a", span(9, 0, 10, 0))
	f.busyExcept("user-b", span(15, 0, 16, 0))

	got, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("期望无窗口，实际: %+v", shapes(got))
	}
	if f.windows.deleteCalls != 1 {
		t.Errorf("无交集时仍应清空旧窗口，delete=%d", f.windows.deleteCalls)
	}
}

func TestAvailabilityService_Recalculate_StoreErrorPropagates(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	errDB := errors.New("db down")
	f.windows.createErr = errDB

	_, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if !errors.Is(err, errDB) {
		t.Errorf("期望存储错误原样返回，实际: %v", err)
	}
}

func TestAvailabilityService_Recalculate_BusyDataErrorPropagates(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	errDB := errors.New("calendar store unavailable")
	f.calendar.listErr = errDB

	_, err := f.svc.Recalculate(context.Background(), "g1", testDay)
	if !errors.Is(err, errDB) {
		t.Errorf("期望错误原样返回，实际: %v", err)
	}
	if f.windows.deleteCalls != 0 {
		t.Error("读取忙碌数据失败时不应删除旧窗口")
	}
}

// holdFirstList 让第一次 ListBusyData 停在读取点，直到 release 被关闭
func holdFirstList(f *availabilityFixture) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	f.calendar.beforeList = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	return entered, release
}

func TestAvailabilityService_Recalculate_CalendarChangeDuringInFlightCall(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	entered, release := holdFirstList(f)

	var wg sync.WaitGroup
	var errFirst error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errFirst = f.svc.Recalculate(context.Background(), "g1", testDay)
	}()
	<-entered

	// 第一次调用已开始读取后写入新事件，随后的重算必须基于新数据
	f.calendar.addEvent("user-a", at(12, 0), at(13, 0))

	var second []dto.AvailabilityWindowResponse
	var errSecond error
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, errSecond = f.svc.Recalculate(context.Background(), "g1", testDay)
	}()

	close(release)
	wg.Wait()

	if errFirst != nil || errSecond != nil {
		t.Fatalf("两次调用均应成功: first=%v second=%v", errFirst, errSecond)
	}
	want := []windowShape{
		{start: at(0, 0), end: at(12, 0), participants: []string{"user-a", "user-b"}},
		{start: at(13, 0), end: testDay.Add(24*time.Hour - time.Millisecond), participants: []string{"user-a", "user-b"}},
	}
	if !reflect.DeepEqual(shapes(second), want) {
		t.Errorf("后发起的重算应反映新事件，实际: %+v", shapes(second))
	}
	if n := f.windows.count("g1", testDay); n != 2 {
		t.Errorf("存储应为最后一次重算的结果（2 个窗口），实际 %d 个", n)
	}
}

func TestAvailabilityService_Recalculate_CancelledCallerDoesNotAffectOthers(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	entered, release := holdFirstList(f)

	ctxFirst, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.svc.Recalculate(ctxFirst, "g1", testDay)
	}()
	<-entered

	var got []dto.AvailabilityWindowResponse
	var errSecond error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, errSecond = f.svc.Recalculate(context.Background(), "g1", testDay)
	}()

	cancel()
	close(release)
	wg.Wait()

	if errSecond != nil {
		t.Fatalf("未取消的调用不应失败: %v", errSecond)
	}
	if len(got) != 1 {
		t.Errorf("期望 1 个窗口，实际: %+v", shapes(got))
	}
}

// ── Read 测试 ──

func TestAvailabilityService_Read_FiltersByParticipant(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b", "user-c")
	f.busyExcept("user-a", span(9, 0, 10, 0), span(15, 0, 16, 0))
	f.busyExcept("user-b", span(9, 0, 10, 0))
	f.busyExcept("user-c", span(15, 0, 16, 0))
	if _, err := f.svc.Recalculate(context.Background(), "g1", testDay); err != nil {
		t.Fatalf("Recalculate 失败: %v", err)
	}

	tests := []struct {
		userID string
		want   int
	}{
		{"user-a", 2},
		{"user-b", 1},
		{"user-c", 1},
		{"user-x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			got, err := f.svc.Read(context.Background(), "g1", testDay, tt.userID)
			if err != nil {
				t.Fatalf("Read 失败: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("期望 %d 个窗口，实际 %d 个", tt.want, len(got))
			}
			for _, w := range got {
				found := false
				for _, id := range w.ParticipantIDs() {
					if id == tt.userID {
						found = true
					}
				}
				if !found {
					t.Errorf("返回了不包含请求用户的窗口: %+v", w)
				}
			}
		})
	}
}

func TestAvailabilityService_Read_EmptyIsNotError(t *testing.T) {
	f := setupTestAvailabilityService()

	got, err := f.svc.Read(context.Background(), "g-none", testDay, "user-a")
	if err != nil {
		t.Fatalf("Read 不应出错: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("期望空列表，实际: %+v", got)
	}
}

func TestAvailabilityService_Read_StoreError(t *testing.T) {
	f := setupTestAvailabilityService()
	errDB := errors.New("db down")
	f.windows.listErr = errDB

	if _, err := f.svc.Read(context.Background(), "g1", testDay, "user-a"); !errors.Is(err, errDB) {
		t.Errorf("期望存储错误原样返回，实际: %v", err)
	}
}

// ── RecalculateForUser 测试 ──

func TestAvailabilityService_RecalculateForUser_PartialFailure(t *testing.T) {
	f := setupTestAvailabilityService()
	f.addMembers("g1", "user-a", "user-b")
	f.addMembers("g2", "user-a", "user-c")
	f.addMembers("g3", "user-a", "user-b", "user-c")
	f.groups.listErr["g2"] = errors.New("membership store unavailable")

	resp, err := f.svc.RecalculateForUser(context.Background(), "user-a", testDay)
	if err != nil {
		t.Fatalf("RecalculateForUser 不应整体失败: %v", err)
	}
	if !reflect.DeepEqual(resp.Succeeded, []string{"g1", "g3"}) {
		t.Errorf("期望 g1、g3 成功，实际: %v", resp.Succeeded)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].GroupID != "g2" {
		t.Errorf("期望 g2 失败，实际: %+v", resp.Failed)
	}
	if f.windows.count("g1", testDay) == 0 || f.windows.count("g3", testDay) == 0 {
		t.Error("成功的群组应已写入窗口")
	}
}

func TestAvailabilityService_RecalculateForUser_NoGroups(t *testing.T) {
	f := setupTestAvailabilityService()

	resp, err := f.svc.RecalculateForUser(context.Background(), "user-lonely", testDay)
	if err != nil {
		t.Fatalf("RecalculateForUser 失败: %v", err)
	}
	if len(resp.Succeeded) != 0 || len(resp.Failed) != 0 {
		t.Errorf("期望空结果，实际: %+v", resp)
	}
}

func TestAvailabilityService_RecalculateForUser_ListGroupsError(t *testing.T) {
	f := setupTestAvailabilityService()
	errDB := errors.New("db down")
	f.groups.groupErr = errDB

	if _, err := f.svc.RecalculateForUser(context.Background(), "user-a", testDay); !errors.Is(err, errDB) {
		t.Errorf("期望错误原样返回，实际: %v", err)
	}
}

func TestFanoutErrorMessage(t *testing.T) {
	if got := fanoutErrorMessage(context.DeadlineExceeded); got != "重算超时" {
		t.Errorf("实际: %s", got)
	}
	if got := fanoutErrorMessage(errors.New("pq: connection refused")); got != "重算失败" {
		t.Errorf("内部错误不应透出，实际: %s", got)
	}
}

// ── 辅助函数测试 ──

func TestBuildWindowModels_SeqAndPosition(t *testing.T) {
	members := []string{"user-a", "user-b", "user-c"}
	windows := buildWindowModels("g1", testDay, []availability.Window{
		{Start: at(9, 0), End: at(10, 0), Participants: []string{"user-a", "user-b"}},
		{Start: at(15, 0), End: at(16, 0), Participants: []string{"user-a", "user-c"}},
	}, members)
	if len(windows) != 2 {
		t.Fatalf("期望 2 个窗口，实际 %d", len(windows))
	}
	for i, w := range windows {
		if w.Seq != i {
			t.Errorf("窗口[%d] seq 错误: %d", i, w.Seq)
		}
		if w.WindowID == "" {
			t.Errorf("窗口[%d] 未分配 ID", i)
		}
		for _, p := range w.Participants {
			if p.WindowID != w.WindowID {
				t.Errorf("参与者 WindowID 不一致: %s != %s", p.WindowID, w.WindowID)
			}
		}
	}
	if windows[1].Participants[1].Position != 2 {
		t.Errorf("user-c 在成员列表中的位置应为 2，实际 %d", windows[1].Participants[1].Position)
	}
	if windows[0].WindowID == windows[1].WindowID {
		t.Error("窗口 ID 应唯一")
	}
}
