package model

// SyncResult is the outcome of refreshing one metric.
type SyncResult struct {
	MetricID    string `json:"metric_id"`
	Success     bool   `json:"success"`
	PointsAdded int    `json:"points_added"`
	Err         error  `json:"-"`
}

// Error returns the failure message, or "" on success.
func (r SyncResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
