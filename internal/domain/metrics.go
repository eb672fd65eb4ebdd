package domain

import "time"

// Metric names a tracked engagement counter.
type Metric string

const (
	MetricViews    Metric = "views"
	MetricLikes    Metric = "likes"
	MetricComments Metric = "comments"
)

// TrackedMetrics lists the counters the evaluator compares, in report order.
var TrackedMetrics = []Metric{MetricViews, MetricLikes, MetricComments}

func IsTrackedMetric(m Metric) bool {
	switch m {
	case MetricViews, MetricLikes, MetricComments:
		return true
	default:
		return false
	}
}

// SnapshotQuality records how much of a snapshot came from platform insights.
type SnapshotQuality string

const (
	SnapshotQualityFull     SnapshotQuality = "full"
	SnapshotQualityDegraded SnapshotQuality = "degraded"
	SnapshotQualityBaseline SnapshotQuality = "zero_baseline"
)

// Snapshot is a normalized view of a post's counters at a point in time.
// Every field is always present; unavailable extended values are zero.
type Snapshot struct {
	Views      int64     `json:"views"`
	Likes      int64     `json:"likes"`
	Comments   int64     `json:"comments"`
	CapturedAt time.Time `json:"captured_at"`

	Reach       int64 `json:"reach"`
	Impressions int64 `json:"impressions"`
	Saves       int64 `json:"saves"`
	Shares      int64 `json:"shares"`
	Engagement  int64 `json:"engagement"`

	TapsForward int64 `json:"taps_forward"`
	TapsBack    int64 `json:"taps_back"`
	Exits       int64 `json:"exits"`
	Replies     int64 `json:"replies"`

	Quality SnapshotQuality `json:"quality"`
}

// ZeroSnapshot is the baseline used when the initial fetch is unavailable.
func ZeroSnapshot(at time.Time) Snapshot {
	return Snapshot{CapturedAt: at, Quality: SnapshotQualityBaseline}
}

// Value returns the counter for a tracked metric.
func (s Snapshot) Value(m Metric) int64 {
	switch m {
	case MetricViews:
		return s.Views
	case MetricLikes:
		return s.Likes
	case MetricComments:
		return s.Comments
	default:
		return 0
	}
}

// Delta is the non-negative growth of m from baseline to s.
func (s Snapshot) Delta(baseline Snapshot, m Metric) int64 {
	d := s.Value(m) - baseline.Value(m)
	if d < 0 {
		return 0
	}
	return d
}

// Deltas computes Delta for every tracked metric.
func Deltas(baseline, current Snapshot) map[Metric]int64 {
	out := make(map[Metric]int64, len(TrackedMetrics))
	for _, m := range TrackedMetrics {
		out[m] = current.Delta(baseline, m)
	}
	return out
}
