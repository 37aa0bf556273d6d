package model

import "time"

// ActivityLog is one audited HTTP request. AdminID is nil for requests made
// without a resolvable principal and is cleared when the admin is deleted.
type ActivityLog struct {
	ID        int64            `json:"id"`
	AdminID   *int64           `json:"adminId"`
	Action    string           `json:"action"`
	Method    string           `json:"method"`
	Path      string           `json:"path"`
	IP        string           `json:"ip"`
	UserAgent string           `json:"userAgent"`
	Metadata  ActivityMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ActivityMetadata is the outcome of an audited request.
type ActivityMetadata struct {
	StatusCode int     `json:"statusCode"`
	DurationMs float64 `json:"durationMs"`
	RequestID  string  `json:"requestId,omitempty"`
}
