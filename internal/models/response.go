package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	Analysis  *AnalysisStatus `json:"analysis,omitempty"`
}

// AnalysisStatus describes the analyzer defaults and whether tag retrieval
// is available
type AnalysisStatus struct {
	TagAnalysis bool    `json:"tag_analysis"`
	ValueColumn string  `json:"value_column"`
	LowAlarm    float64 `json:"low_alarm"`
	HighAlarm   float64 `json:"high_alarm"`
}

// RowView is one output row. Null cells are JSON null.
type RowView struct {
	Timestamp string              `json:"timestamp"`
	Status    string              `json:"status,omitempty"`
	Values    map[string]*float64 `json:"values"`
}

// BoundsView holds Tukey fences
type BoundsView struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// MissingView describes gaps in the raw value column
type MissingView struct {
	Total        int     `json:"total"`
	Missing      int     `json:"missing"`
	MissingRatio float64 `json:"missing_ratio"`
	Interval     string  `json:"interval"`
	ExpectedRows int     `json:"expected_rows"`
	ActualRows   int     `json:"actual_rows"`
	Runs         int     `json:"runs"`
	LongestRun   int     `json:"longest_run"`
}

// AnalysisSummary is the run-level part of an analysis response
type AnalysisSummary struct {
	RunID     string         `json:"run_id"`
	Rows      int            `json:"rows"`
	Counts    map[string]int `json:"counts"`
	Removed   int            `json:"removed"`
	Bounds    *BoundsView    `json:"bounds,omitempty"`
	Missing   MissingView    `json:"missing"`
	ElapsedMs float64        `json:"elapsed_ms"`
}

// PushView reports a push-back of derived datapoints
type PushView struct {
	ExternalID string `json:"external_id"`
	Created    bool   `json:"created"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
}

// AnalyzeResponse represents an analysis result
type AnalyzeResponse struct {
	Tag        string          `json:"tag,omitempty"`
	Columns    []string        `json:"columns"`
	Rows       []RowView       `json:"rows"`
	Downsample string          `json:"downsample,omitempty"`
	Summary    AnalysisSummary `json:"summary"`
	ExportPath string          `json:"export_path,omitempty"`
	Pushed     *PushView       `json:"pushed,omitempty"`
}

// PointView is a single timestamped value
type PointView struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// OutliersResponse reports the Tukey fences and the rows outside them
type OutliersResponse struct {
	Bounds   BoundsView  `json:"bounds"`
	Total    int         `json:"total"`
	Removed  int         `json:"removed"`
	Kept     int         `json:"kept"`
	Outliers []PointView `json:"outliers"`
}

// DescribeResponse holds descriptive statistics. Statistics of an all-null
// series are null.
type DescribeResponse struct {
	Count  int      `json:"count"`
	Nulls  int      `json:"nulls"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q1     *float64 `json:"q1"`
	Median *float64 `json:"median"`
	Q3     *float64 `json:"q3"`
	Max    *float64 `json:"max"`
	MAD    *float64 `json:"mad"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
