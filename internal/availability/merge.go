package availability

import "sort"

// Merge 合并忙碌区间，返回按开始时间升序、互不重叠且互不相邻的区间列表
//
// next.Start <= cur.End 即合并（首尾相接也合并），避免产生零长度空隙。
// 不修改入参。
func Merge(busy []Interval) []Interval {
	if len(busy) == 0 {
		return nil
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	return append(merged, cur)
}
