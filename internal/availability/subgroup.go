package availability

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxCombinations = 20000
	defaultSearchWorkers   = 4
)

// Window 带参与者的群组空闲窗口
type Window struct {
	Start        time.Time
	End          time.Time
	Participants []string
}

// SearchOptions 子群搜索的资源上限
type SearchOptions struct {
	// MaxCombinations 单次搜索最多求交的子群组合数；超出后停止降级搜索
	MaxCombinations int
	// Workers 同一规模内并行求交的 goroutine 数
	Workers int
}

// SearchResult 子群搜索结果
type SearchResult struct {
	Windows []Window
	// Size 产生窗口的群组规模；无结果时为 0
	Size int
	// Combinations 实际求交的子群组合数（不含全员那一次）
	Combinations int
	// Truncated 因组合数上限而未搜索完所有规模
	Truncated bool
}

// Searcher 按规模递减的子群搜索器
type Searcher struct {
	opts SearchOptions
}

// NewSearcher 创建 Searcher；非正数选项取默认值
func NewSearcher(opts SearchOptions) *Searcher {
	if opts.MaxCombinations <= 0 {
		opts.MaxCombinations = defaultMaxCombinations
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultSearchWorkers
	}
	return &Searcher{opts: opts}
}

// Search 计算群组空闲窗口
//
// 策略：
//  1. 全员求交有结果 → 只返回全员窗口，不再计算任何子群
//  2. 否则规模从 N-1 递减到 2，枚举该规模的全部组合（按输入下标字典序）并分别求交；
//     某一规模只要有任一组合产生窗口就收集该规模的全部结果并停止
//  3. 所有规模均无交集 → 空结果
//
// 单人窗口永远不会出现。ctx 在规模之间检查。
func (s *Searcher) Search(ctx context.Context, memberIDs []string, free map[string][]Interval) (SearchResult, error) {
	var result SearchResult
	n := len(memberIDs)
	if n < 2 {
		return result, nil
	}

	if full := Intersect(memberIDs, free); len(full) > 0 {
		result.Windows = toWindows(full, memberIDs)
		result.Size = n
		return result, nil
	}

	remaining := s.opts.MaxCombinations
	for size := n - 1; size >= 2; size-- {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		count := binomial(n, size, remaining)
		if count > remaining {
			result.Truncated = true
			return result, nil
		}

		combos := combinations(n, size)
		found, err := s.searchLevel(ctx, memberIDs, combos, free)
		if err != nil {
			return result, err
		}
		remaining -= len(combos)
		result.Combinations += len(combos)

		if len(found) > 0 {
			result.Windows = found
			result.Size = size
			return result, nil
		}
	}
	return result, nil
}

// searchLevel 并行计算同一规模下所有组合的交集，结果按组合顺序拼接
func (s *Searcher) searchLevel(ctx context.Context, memberIDs []string, combos [][]int, free map[string][]Interval) ([]Window, error) {
	slots := make([][]Window, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, combo := range combos {
		i, combo := i, combo
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ids := make([]string, len(combo))
			for k, idx := range combo {
				ids[k] = memberIDs[idx]
			}
			if overlaps := Intersect(ids, free); len(overlaps) > 0 {
				slots[i] = toWindows(overlaps, ids)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var windows []Window
	for _, w := range slots {
		windows = append(windows, w...)
	}
	return windows, nil
}

func toWindows(intervals []Interval, participants []string) []Window {
	out := make([]Window, 0, len(intervals))
	for _, iv := range intervals {
		ids := make([]string, len(participants))
		copy(ids, participants)
		out = append(out, Window{Start: iv.Start, End: iv.End, Participants: ids})
	}
	return out
}

// combinations 按字典序枚举 {0..n-1} 中全部 k 元组合
func combinations(n, k int) [][]int {
	if k <= 0 || k > n {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		c := make([]int, k)
		copy(c, idx)
		out = append(out, c)

		// 找到最右侧仍可递增的位置
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// binomial 计算 C(n, k)；结果超过 limit 时返回 limit+1，避免溢出
func binomial(n, k, limit int) int {
	if k < 0 || k > n {
		return 0
	}
	if n-k < k {
		k = n - k
	}
	c := 1
	for i := 0; i < k; i++ {
		c = c * (n - i) / (i + 1)
		if c > limit {
			return limit + 1
		}
	}
	return c
}
