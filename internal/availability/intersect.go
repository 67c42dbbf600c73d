package availability

import "sort"

// Intersect 求多个用户空闲区间的交集
//
// free 中每个用户的区间须已按开始时间排序且互不重叠（Free 的输出满足）。
// 少于 2 个用户时返回 nil：单人不构成群组空闲。
// 任一轮求交为空即提前返回。
func Intersect(userIDs []string, free map[string][]Interval) []Interval {
	if len(userIDs) < 2 {
		return nil
	}

	overlaps := free[userIDs[0]]
	for _, id := range userIDs[1:] {
		overlaps = intersectPair(overlaps, free[id])
		if len(overlaps) == 0 {
			return nil
		}
	}
	return overlaps
}

// intersectPair 两组区间两两求交，仅保留 start < end 的结果
func intersectPair(a, b []Interval) []Interval {
	var out []Interval
	for _, x := range a {
		for _, y := range b {
			start := x.Start
			if y.Start.After(start) {
				start = y.Start
			}
			end := x.End
			if y.End.Before(end) {
				end = y.End
			}
			if start.Before(end) {
				out = append(out, Interval{Start: start, End: end})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
