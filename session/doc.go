// Package session manages server-tracked sessions with a sliding
// inactivity window, an absolute lifetime cap, and a per-user
// concurrency cap with oldest-first eviction.
package session
