package session

import "time"

// Session is a server-tracked continuation of a login, used where
// forced logout must be possible (admin consoles, dealer dashboards).
// Inactive is terminal: no transition ever reactivates a session.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	ExpiresAt     time.Time `json:"expires_at"`
	InvalidatedAt time.Time `json:"invalidated_at"`
	IP            string    `json:"ip"`
	UserAgent     string    `json:"user_agent"`
	Active        bool      `json:"active"`
}

// Metadata is the request context captured at session creation.
type Metadata struct {
	IP        string
	UserAgent string
}
