package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// ColTTF holds hours from an anomaly row to the next alarm row
const ColTTF = "TTF"

// AssignStatus labels every row of t. The feature columns produced by
// features.GenerateAll with the default window must already be present.
func AssignStatus(t *analytics.Table, valueCol string, th Thresholds) (*analytics.Table, error) {
	if _, err := t.Column(valueCol); err != nil {
		return t, err
	}

	c := readColumns(t, valueCol)
	n := t.Len()
	status := make([]Status, n)
	assigned := make([]bool, n)

	for _, r := range cascade {
		m := r.match(c, th)
		for i := 0; i < n; i++ {
			if !assigned[i] && m[i] {
				status[i] = r.status
				assigned[i] = true
			}
		}
	}

	t.Status = status
	return t, nil
}

// CalculateTTF records, for each Anomaly row, the hours until the first row
// with a strictly later timestamp labelled Low Alarm or High Alarm, rounded to
// two decimals. Rows without a later alarm stay null.
func CalculateTTF(t *analytics.Table) *analytics.Table {
	ttf := analytics.NullColumn(t.Len())

	var alarmTimes []time.Time
	for i, s := range t.Status {
		if s.IsAlarm() {
			alarmTimes = append(alarmTimes, t.Times[i])
		}
	}

	for i, s := range t.Status {
		if s != analytics.StatusAnomaly {
			continue
		}
		current := t.Times[i]
		j := sort.Search(len(alarmTimes), func(k int) bool {
			return alarmTimes[k].After(current)
		})
		if j == len(alarmTimes) {
			continue
		}
		hours := alarmTimes[j].Sub(current).Hours()
		ttf[i] = math.Round(hours*100) / 100
	}

	t.SetColumn(ColTTF, ttf)
	return t
}

// StatusCounts tallies rows per status
type StatusCounts map[Status]int

// CountStatuses tallies the status vector of t
func CountStatuses(t *analytics.Table) StatusCounts {
	counts := make(StatusCounts, len(analytics.AllStatuses()))
	for _, s := range analytics.AllStatuses() {
		counts[s] = 0
	}
	for _, s := range t.Status {
		counts[s]++
	}
	return counts
}

// Classifier applies the cascade and TTF labelling with fixed thresholds
type Classifier struct {
	logger     *logging.Logger
	thresholds Thresholds
}

// NewClassifier creates a Classifier
func NewClassifier(logger *logging.Logger, th Thresholds) *Classifier {
	if logger == nil {
		logger = logging.Global()
	}
	return &Classifier{logger: logger, thresholds: th}
}

// Thresholds returns the configured alarm limits
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify assigns statuses, then TTF labels, and returns the status tally
func (c *Classifier) Classify(t *analytics.Table, valueCol string) (StatusCounts, error) {
	if _, err := AssignStatus(t, valueCol, c.thresholds); err != nil {
		return nil, err
	}
	CalculateTTF(t)

	counts := CountStatuses(t)
	c.logger.Info("Assigned status",
		"rows", t.Len(),
		"low_alarm", c.thresholds.Low,
		"high_alarm", c.thresholds.High,
		"anomaly", counts[analytics.StatusAnomaly],
		"alarms", counts[analytics.StatusLowAlarm]+counts[analytics.StatusHighAlarm],
		"bad_data", counts[analytics.StatusBadData])
	return counts, nil
}
