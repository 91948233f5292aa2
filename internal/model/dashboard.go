package model

// DashboardStats are the counters on the landing dashboard. For clinicians
// every figure is scoped to their own bookings; TotalPatients then counts
// distinct patients they have bookings with rather than the whole registry.
type DashboardStats struct {
	TodayCount    int64 `json:"today_count"`
	TotalPatients int64 `json:"total_patients"`
	PendingCount  int64 `json:"pending_count"`
}
