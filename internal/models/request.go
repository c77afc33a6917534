package models

import (
	"github.com/gofiber/fiber/v2"
)

// MaxPoints caps the number of inline points per request
const MaxPoints = 500000

// PointRequest is one raw datapoint. Value may be a number, a numeric string
// or null.
type PointRequest struct {
	Timestamp string      `json:"timestamp"`
	Value     interface{} `json:"value"`
}

// OptionsRequest overrides the configured analysis defaults. Unset fields
// keep the server defaults.
type OptionsRequest struct {
	Window         *int     `json:"window,omitempty"`
	LowAlarm       *float64 `json:"low_alarm,omitempty"`
	HighAlarm      *float64 `json:"high_alarm,omitempty"`
	SampleInterval string   `json:"sample_interval,omitempty"` // "1m", "PT1M", "90s"
	Interval       string   `json:"interval,omitempty"`
	RemoveOutliers *bool    `json:"remove_outliers,omitempty"`
	FillMethod     *string  `json:"fill_method,omitempty"`
	ImputeMethod   *string  `json:"impute_method,omitempty"`
}

// OutputRequest controls how many rows an analysis response carries.
// Summaries always cover every row.
type OutputRequest struct {
	Downsample string `json:"downsample,omitempty"` // none, auto, lttb, minmax, m4
	MaxRows    int    `json:"max_rows,omitempty"`
}

func (o OutputRequest) validate() error {
	if o.MaxRows < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "max_rows must not be negative")
	}
	return nil
}

// AnalyzeRequest runs the pipeline over inline points
type AnalyzeRequest struct {
	Points   []PointRequest `json:"points"`
	Timezone string         `json:"timezone,omitempty"` // Zone for timestamps without offset
	Options  OptionsRequest `json:"options"`
	Output   OutputRequest  `json:"output"`
}

// Validate checks the request shape
func (r *AnalyzeRequest) Validate() error {
	if err := r.Output.validate(); err != nil {
		return err
	}
	return validatePoints(r.Points)
}

// TagAnalyzeRequest runs the pipeline over a tag read from the source
type TagAnalyzeRequest struct {
	Start       string         `json:"start,omitempty"`
	End         string         `json:"end,omitempty"`
	Aggregate   string         `json:"aggregate,omitempty"`   // average, min, max, sum, count, ...
	Granularity string         `json:"granularity,omitempty"` // Bucket size when aggregating
	Export      bool           `json:"export,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Push        bool           `json:"push,omitempty"`
	Options     OptionsRequest `json:"options"`
	Output      OutputRequest  `json:"output"`
}

// Validate checks the request shape
func (r *TagAnalyzeRequest) Validate() error {
	if err := r.Output.validate(); err != nil {
		return err
	}
	if r.Granularity != "" && r.Aggregate == "" {
		return fiber.NewError(fiber.StatusBadRequest, "granularity requires aggregate")
	}
	return nil
}

// SeriesRequest carries points for the outlier and describe endpoints
type SeriesRequest struct {
	Points   []PointRequest `json:"points"`
	Timezone string         `json:"timezone,omitempty"`
}

// Validate checks the request shape
func (r *SeriesRequest) Validate() error {
	return validatePoints(r.Points)
}

func validatePoints(points []PointRequest) error {
	if len(points) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "points is required")
	}
	if len(points) > MaxPoints {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too many points")
	}
	for _, p := range points {
		if p.Timestamp == "" {
			return fiber.NewError(fiber.StatusBadRequest, "every point needs a timestamp")
		}
	}
	return nil
}
