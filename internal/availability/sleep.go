package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidTimeOfDay 时刻格式错误
var ErrInvalidTimeOfDay = errors.New("时刻格式错误，应为 HH:MM 或 HH:MM:SS")

// TimeOfDay 距当地零点的偏移量，与日期无关
type TimeOfDay time.Duration

// ParseTimeOfDay 解析 "HH:MM" / "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		total += time.Duration(n) * units[i]
	}
	return TimeOfDay(total), nil
}

// String 格式化为 HH:MM（秒不为 0 时为 HH:MM:SS）
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	if sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// SleepWindow 每日重复的睡眠时段
// End <= Start 表示跨越零点（结束时刻落在次日）
type SleepWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Duration 单次睡眠时长；Start == End 视为整整 24 小时
func (sw SleepWindow) Duration() time.Duration {
	d := time.Duration(sw.End) - time.Duration(sw.Start)
	if d <= 0 {
		d += DayLength
	}
	return d
}

// Validate 起止时刻须落在 [00:00, 24:00)
func (sw SleepWindow) Validate() error {
	for _, t := range []TimeOfDay{sw.Start, sw.End} {
		if t < 0 || time.Duration(t) >= DayLength {
			return fmt.Errorf("%w: 睡眠时段 %s-%s 超出一天范围", ErrInvalidTimeOfDay, sw.Start, sw.End)
		}
	}
	return nil
}

// ProjectSleep 将睡眠时段投影到目标日
//
// 以前一天、当天、后一天三个锚点生成每日重复的发生实例，
// 仅保留与 [day.Start, day.End] 相交的实例并裁剪到日界内。
// sw 为 nil（用户未配置睡眠时段）时不产生任何忙碌区间。
// 无法投影时返回错误，调用方不得把该用户当作整晚空闲。
func ProjectSleep(sw *SleepWindow, day Day) ([]Interval, error) {
	if sw == nil {
		return nil, nil
	}
	if err := sw.Validate(); err != nil {
		return nil, err
	}

	anchor := day.Start.Add(-DayLength).Add(time.Duration(sw.Start))
	// rrule 会将 DTSTART 截断到秒，这里补回亚秒部分
	frac := anchor.Sub(anchor.Truncate(time.Second))

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   3,
		Dtstart: anchor.Truncate(time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("生成睡眠重复规则失败: %w", err)
	}

	length := sw.Duration()
	out := make([]Interval, 0, 2)
	for _, occ := range rule.All() {
		start := occ.Add(frac)
		if c, ok := day.clip(Interval{Start: start, End: start.Add(length)}); ok {
			out = append(out, c)
		}
	}
	return out, nil
}
