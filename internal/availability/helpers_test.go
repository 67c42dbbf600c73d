package availability

import (
	"testing"
	"time"
)

// ── 测试辅助 ──

var testDay = NewDay(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))

// at 返回测试日当天 h:m 的时刻
func at(h, m int) time.Time {
	return testDay.Start.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func assertIntervals(t *testing.T, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个区间，实际 %d 个: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("区间[%d] 期望 %v，实际 %v", i, want[i], got[i])
		}
	}
}

// freeOf 无睡眠时段时的用户空闲区间
func freeOf(t *testing.T, events []Interval) []Interval {
	t.Helper()
	free, err := UserFree(events, nil, testDay)
	if err != nil {
		t.Fatalf("UserFree 不应出错: %v", err)
	}
	return free
}
