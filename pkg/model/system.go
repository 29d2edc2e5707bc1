package model

// Health is the payload of GET /test/health.
type Health struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Database   string `json:"database,omitempty"`
	TotalUsers *int64 `json:"totalUsers,omitempty"`
	Timestamp  *Time  `json:"timestamp,omitempty"`
}

// IsUp reports whether the backend declared itself healthy.
func (h *Health) IsUp() bool {
	return h != nil && h.Status == "UP"
}

// Stats is the payload of GET /test/stats.
type Stats struct {
	TotalUsers   int64 `json:"totalUsers"`
	AdminUsers   int64 `json:"adminUsers"`
	RegularUsers int64 `json:"regularUsers"`
}
