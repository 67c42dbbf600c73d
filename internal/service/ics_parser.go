package service

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"groupsync/backend/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 内容解析为忙碌事件。
//
// 规则：
//   - 全天事件（VALUE=DATE）不计为忙碌，跳过
//   - STATUS:CANCELLED 与 TRANSP:TRANSPARENT 的事件不占用时间，跳过
//   - 无 DTEND 时按 DURATION 推算；两者皆无或长度非正时跳过
//   - 带 RRULE 的事件只导入 DTSTART 对应的首次发生
//   - 无时区信息的浮动时间按 UTC 处理
// ─────────────────────────────────────────────────────────────

const icsMaxFileSize = 5 * 1024 * 1024 // 5MB

// ErrICSParse ICS 内容无法解析
var ErrICSParse = errors.New("ICS 格式解析失败")

// icsParseResult ICS 解析结果
type icsParseResult struct {
	Events  []model.CalendarEvent
	Skipped int
}

// ParseICS 解析 ICS 数据流，返回归属 userID 的忙碌事件
func ParseICS(reader io.Reader, userID string) (*icsParseResult, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrICSParse, err)
	}

	result := &icsParseResult{}
	for _, evt := range cal.Events() {
		e, ok := parseBusyEvent(evt)
		if !ok {
			result.Skipped++
			continue
		}
		e.UserID = userID
		result.Events = append(result.Events, e)
	}
	return result, nil
}

// parseBusyEvent 解析单个 VEVENT；不构成忙碌时间时 ok=false
func parseBusyEvent(evt *ics.VEvent) (model.CalendarEvent, bool) {
	if p := evt.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return model.CalendarEvent{}, false
	}
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return model.CalendarEvent{}, false
	}

	startProp := evt.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil || isDateOnly(startProp) {
		return model.CalendarEvent{}, false
	}
	start, err := parseICSDateTime(startProp)
	if err != nil {
		return model.CalendarEvent{}, false
	}

	var end time.Time
	if endProp := evt.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		if end, err = parseICSDateTime(endProp); err != nil {
			return model.CalendarEvent{}, false
		}
	} else if durProp := evt.GetProperty(ics.ComponentPropertyDuration); durProp != nil {
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return model.CalendarEvent{}, false
		}
		end = start.Add(d)
	} else {
		return model.CalendarEvent{}, false
	}
	if !start.Before(end) {
		return model.CalendarEvent{}, false
	}

	e := model.CalendarEvent{
		StartTime: start,
		EndTime:   end,
		Source:    model.EventSourceICS,
	}
	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
		e.Title = truncateRunes(strings.TrimSpace(p.Value), 200)
	}
	if p := evt.GetProperty(ics.ComponentPropertyUniqueId); p != nil {
		e.ExternalUID = truncateRunes(p.Value, 255)
	}
	return e, true
}

// isDateOnly 判断是否为全天日期（VALUE=DATE 或 8 位日期值）
func isDateOnly(prop *ics.IANAProperty) bool {
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "VALUE") && len(v) > 0 && strings.EqualFold(v[0], "DATE") {
			return true
		}
	}
	return len(strings.TrimSpace(prop.Value)) == 8
}

// parseICSDateTime 解析日期时间属性，统一转为 UTC
func parseICSDateTime(prop *ics.IANAProperty) (time.Time, error) {
	val := strings.TrimSpace(prop.Value)

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("20060102T150405", val)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
	}

	// 检查 TZID 参数
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			if loc, err := time.LoadLocation(v[0]); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC(), nil
			}
		}
	}
	return t.UTC(), nil
}

var icsDurationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseICSDuration 解析 RFC 5545 DURATION（如 PT1H30M、P1D、P2W）
func parseICSDuration(val string) (time.Duration, error) {
	m := icsDurationPattern.FindStringSubmatch(strings.TrimSpace(val))
	if m == nil || val == "P" || strings.HasSuffix(val, "T") {
		return 0, fmt.Errorf("无法解析时长: %s", val)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("无法解析时长: %s", val)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
