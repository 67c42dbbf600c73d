package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 重算结果标签
const (
	resultSuccess = "success"
	resultSkipped = "skipped" // 成员不足 2 人
	resultError   = "error"
)

var (
	// recalcTotal 按结果统计重算次数
	recalcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupsync_availability_recalc_total",
		Help: "Total availability recalculations by result",
	}, []string{"result"})

	// recalcDuration 单次重算耗时（含加锁与事务）
	recalcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupsync_availability_recalc_duration_seconds",
		Help:    "Availability recalculation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms ~ 10s
	})

	// recalcCombinations 子群搜索实际求交的组合数
	recalcCombinations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupsync_availability_subgroup_combinations",
		Help:    "Number of subgroup combinations intersected per recalculation",
		Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
	})

	// recalcWindows 每次重算写入的窗口数
	recalcWindows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupsync_availability_windows",
		Help:    "Number of availability windows written per recalculation",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	// recalcTruncated 因组合数上限而提前停止的搜索次数
	recalcTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupsync_availability_search_truncated_total",
		Help: "Total subgroup searches stopped by the combination budget",
	})

	// fanoutFailures 用户级批量重算中失败的群组数
	fanoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupsync_availability_fanout_failures_total",
		Help: "Total per-group failures during user fan-out recalculation",
	})
)
