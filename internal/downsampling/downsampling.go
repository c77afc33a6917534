// Package downsampling thins analysis results for charting. Row selection
// works on the value column; rows labelled with any status other than
// Normal are always kept so alarms and anomalies stay visible.
package downsampling

import (
	"fmt"
	"math"
	"strings"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

// Mode represents the downsampling mode
type Mode string

const (
	// ModeNone means no downsampling
	ModeNone Mode = "none"
	// ModeAuto picks an algorithm from the shape of the data
	ModeAuto Mode = "auto"
	// ModeLTTB uses Largest-Triangle-Three-Buckets algorithm
	ModeLTTB Mode = "lttb"
	// ModeMinMax keeps min and max values per bucket (preserves peaks/spikes)
	ModeMinMax Mode = "minmax"
	// ModeM4 keeps First, Min, Max, Last per bucket (4 points per bucket)
	ModeM4 Mode = "m4"
)

// DefaultThreshold is the target row count when none is given
const DefaultThreshold = 1000

// MinLTTBThreshold is the minimum threshold for LTTB algorithm
const MinLTTBThreshold = 100

// ValidModes returns all valid downsampling modes
func ValidModes() []Mode {
	return []Mode{ModeNone, ModeAuto, ModeLTTB, ModeMinMax, ModeM4}
}

// ParseMode parses a mode name. Empty means ModeNone.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeNone, nil
	}
	for _, m := range ValidModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: unknown downsampling mode %q, choose from %v",
		analytics.ErrInvalidArgument, s, ValidModes())
}

// point is a non-null value and its row in the source table
type point struct {
	row   int
	value float64
}

// Downsample returns a table holding at most about threshold Normal rows of
// t plus every row with another status. The input is returned unchanged
// when no thinning is needed.
func Downsample(t *analytics.Table, col string, mode Mode, threshold int) (*analytics.Table, error) {
	if mode == ModeNone || t.Len() == 0 {
		return t, nil
	}
	values, err := t.Column(col)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, t.Len())
	var candidates []point
	for i, v := range values {
		flagged := i < len(t.Status) && t.Status[i] != analytics.StatusNormal
		switch {
		case flagged || analytics.IsNull(v):
			keep[i] = true
		default:
			candidates = append(candidates, point{row: i, value: v})
		}
	}

	rows, err := selectRows(candidates, mode, threshold)
	if err != nil {
		return nil, err
	}
	if len(rows) == len(candidates) {
		return t, nil
	}
	for _, r := range rows {
		keep[r] = true
	}
	return t.Filter(keep), nil
}

// Select returns the indices of values to keep in ascending order. Null
// values are never selected.
func Select(values []float64, mode Mode, threshold int) ([]int, error) {
	points := make([]point, 0, len(values))
	for i, v := range values {
		if !analytics.IsNull(v) {
			points = append(points, point{row: i, value: v})
		}
	}
	return selectRows(points, mode, threshold)
}

func selectRows(points []point, mode Mode, threshold int) ([]int, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold < 2 {
		threshold = 2
	}

	if mode == ModeAuto {
		if len(points) <= threshold {
			return rowsOf(points), nil
		}
		mode = detectBestAlgorithm(points)
	}

	var picked []int
	switch mode {
	case ModeNone:
		return rowsOf(points), nil
	case ModeLTTB:
		if threshold < MinLTTBThreshold {
			threshold = MinLTTBThreshold
		}
		picked = lttb(points, threshold)
	case ModeMinMax:
		picked = minmax(points, threshold)
	case ModeM4:
		picked = m4(points, threshold)
	default:
		return nil, fmt.Errorf("%w: unknown downsampling mode %q", analytics.ErrInvalidArgument, mode)
	}
	return picked, nil
}

func rowsOf(points []point) []int {
	rows := make([]int, len(points))
	for i, p := range points {
		rows[i] = p.row
	}
	return rows
}

// detectBestAlgorithm selects MinMax for spiky data, M4 for moderately
// spiky data and LTTB otherwise
func detectBestAlgorithm(points []point) Mode {
	spikiness := calculateSpikiness(points)
	switch {
	case spikiness > 0.2:
		return ModeMinMax
	case spikiness > 0.1 && len(points) <= 100000:
		return ModeM4
	default:
		return ModeLTTB
	}
}

// calculateSpikiness returns a value between 0 (smooth) and 1 (very spiky):
// a weighted share of points beyond two standard deviations and of steps
// larger than one standard deviation
func calculateSpikiness(points []point) float64 {
	if len(points) < 10 {
		return 0
	}

	sum := 0.0
	for _, p := range points {
		sum += p.value
	}
	mean := sum / float64(len(points))

	variance := 0.0
	for _, p := range points {
		diff := p.value - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(points)))
	if stdDev == 0 {
		return 0
	}

	spikes, steps := 0, 0
	for i, p := range points {
		if math.Abs(p.value-mean) > 2*stdDev {
			spikes++
		}
		if i > 0 && math.Abs(p.value-points[i-1].value) > stdDev {
			steps++
		}
	}

	absolute := float64(spikes) / float64(len(points))
	derivative := float64(steps) / float64(len(points)-1)
	return math.Min((absolute+1.5*derivative)/2.5, 1)
}

// bucket returns the [start, end) range of bucket i when n points are split
// into count buckets
func bucket(i, count, n int) (int, int) {
	size := float64(n) / float64(count)
	start := int(float64(i) * size)
	end := int(float64(i+1) * size)
	if end > n {
		end = n
	}
	return start, end
}

// lttb implements the Largest-Triangle-Three-Buckets algorithm
func lttb(data []point, threshold int) []int {
	if len(data) <= threshold {
		return rowsOf(data)
	}

	sampled := make([]int, 0, threshold)
	sampled = append(sampled, data[0].row)

	// Buckets exclude the first and last points
	bucketSize := float64(len(data)-2) / float64(threshold-2)
	a := 0

	for i := 0; i < threshold-2; i++ {
		// Average of the next bucket
		avgStart := int(math.Floor(float64(i+1)*bucketSize)) + 1
		avgEnd := int(math.Floor(float64(i+2)*bucketSize)) + 1
		if avgEnd > len(data) {
			avgEnd = len(data)
		}
		avgX, avgY := 0.0, 0.0
		for j := avgStart; j < avgEnd; j++ {
			avgX += float64(j)
			avgY += data[j].value
		}
		avgLen := float64(avgEnd - avgStart)
		avgX /= avgLen
		avgY /= avgLen

		from := int(math.Floor(float64(i)*bucketSize)) + 1
		to := int(math.Floor(float64(i+1)*bucketSize)) + 1

		ax, ay := float64(a), data[a].value
		maxArea := -1.0
		next := from
		for j := from; j < to; j++ {
			area := math.Abs((ax-avgX)*(data[j].value-ay)-(ax-float64(j))*(avgY-ay)) * 0.5
			if area > maxArea {
				maxArea = area
				next = j
			}
		}

		sampled = append(sampled, data[next].row)
		a = next
	}

	return append(sampled, data[len(data)-1].row)
}

// minmax keeps the min and max of each bucket in time order
func minmax(data []point, threshold int) []int {
	if len(data) <= threshold {
		return rowsOf(data)
	}

	buckets := threshold / 2
	if buckets < 1 {
		buckets = 1
	}

	sampled := make([]int, 0, buckets*2)
	for i := 0; i < buckets; i++ {
		start, end := bucket(i, buckets, len(data))
		if start >= end {
			continue
		}
		lo, hi := extremes(data, start, end)
		if lo > hi {
			lo, hi = hi, lo
		}
		sampled = append(sampled, data[lo].row)
		if lo != hi {
			sampled = append(sampled, data[hi].row)
		}
	}
	return sampled
}

// m4 keeps the first, min, max and last of each bucket in time order
func m4(data []point, threshold int) []int {
	if len(data) <= threshold {
		return rowsOf(data)
	}

	buckets := threshold / 4
	if buckets < 1 {
		buckets = 1
	}

	sampled := make([]int, 0, buckets*4)
	for i := 0; i < buckets; i++ {
		start, end := bucket(i, buckets, len(data))
		if start >= end {
			continue
		}
		lo, hi := extremes(data, start, end)
		if lo > hi {
			lo, hi = hi, lo
		}

		prev := -1
		for _, idx := range []int{start, lo, hi, end - 1} {
			if idx > prev {
				sampled = append(sampled, data[idx].row)
				prev = idx
			}
		}
	}
	return sampled
}

// extremes returns the positions of the min and max in data[start:end]
func extremes(data []point, start, end int) (minIdx, maxIdx int) {
	minIdx, maxIdx = start, start
	for j := start + 1; j < end; j++ {
		if data[j].value < data[minIdx].value {
			minIdx = j
		}
		if data[j].value > data[maxIdx].value {
			maxIdx = j
		}
	}
	return minIdx, maxIdx
}
