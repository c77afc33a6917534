package analytics

// Status is the categorical label assigned to each row by classification
type Status string

const (
	StatusBadData   Status = "Bad Data"
	StatusLowAlarm  Status = "Low Alarm"
	StatusHighAlarm Status = "High Alarm"
	StatusAnomaly   Status = "Anomaly"
	StatusNormal    Status = "Normal"
)

// IsAlarm reports whether the status is a low or high alarm
func (s Status) IsAlarm() bool {
	return s == StatusLowAlarm || s == StatusHighAlarm
}

// String returns the label
func (s Status) String() string {
	return string(s)
}

// AllStatuses lists every status in cascade priority order
func AllStatuses() []Status {
	return []Status{StatusBadData, StatusLowAlarm, StatusHighAlarm, StatusAnomaly, StatusNormal}
}
