package availability

// Free 由合并后的忙碌区间求当天的空闲区间（补集）
//
// merged 必须来自 Merge 且已裁剪到日界内。忙碌为空时整天空闲；
// 相邻忙碌区间之间仅在 prev.End < next.Start 时产生空闲区间。
func Free(merged []Interval, day Day) []Interval {
	if len(merged) == 0 {
		return []Interval{day.Whole()}
	}

	free := make([]Interval, 0, len(merged)+1)
	cursor := day.Start
	for _, b := range merged {
		if cursor.Before(b.Start) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(day.End) {
		free = append(free, Interval{Start: cursor, End: day.End})
	}
	return free
}
