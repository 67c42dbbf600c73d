// Package availability 群组空闲时间计算引擎（纯计算，不做任何 I/O）。
//
// 处理流程：
//  1. 每位成员：日历事件裁剪到当天 + 睡眠时段投影 → 合并 → 取补集得到空闲区间
//  2. 全员求交；为空时按规模递减枚举子群求交
//
// 引擎只接收已解析好的 UTC 日界 [Start, End]，不解析任何时区字符串。
package availability

import (
	"fmt"
	"time"
)

// DayLength 一个日历日的长度
const DayLength = 24 * time.Hour

// Interval 时间区间（忙碌区间与空闲区间共用）
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 区间长度
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// String 便于日志与测试输出
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", iv.Start.Format(time.RFC3339Nano), iv.End.Format(time.RFC3339Nano))
}

// Day 一个日历日的 UTC 边界：End = Start + 24h - 1ms
type Day struct {
	Start time.Time
	End   time.Time
}

// NewDay 由当天起始时刻构造日界
func NewDay(start time.Time) Day {
	start = start.UTC()
	return Day{Start: start, End: start.Add(DayLength - time.Millisecond)}
}

// Whole 整天区间
func (d Day) Whole() Interval {
	return Interval{Start: d.Start, End: d.End}
}

// clip 将区间裁剪到日界内；裁剪后长度为 0 或负数时 ok=false
func (d Day) clip(iv Interval) (Interval, bool) {
	start, end := iv.Start, iv.End
	if start.Before(d.Start) {
		start = d.Start
	}
	if end.After(d.End) {
		end = d.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Clip 丢弃不与当天相交的忙碌区间，并把其余区间裁剪到日界内
func Clip(busy []Interval, day Day) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		if c, ok := day.clip(iv); ok {
			out = append(out, c)
		}
	}
	return out
}

// UserFree 计算单个用户当天的空闲区间：日历事件 ∪ 睡眠投影 → 合并 → 补集
func UserFree(events []Interval, sleep *SleepWindow, day Day) ([]Interval, error) {
	projected, err := ProjectSleep(sleep, day)
	if err != nil {
		return nil, err
	}
	busy := append(Clip(events, day), projected...)
	return Free(Merge(busy), day), nil
}
