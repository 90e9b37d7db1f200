package model

// RateLimitStatus reports the caller's standing in the current window
// without consuming quota.
type RateLimitStatus struct {
	Limit          int   `json:"limit"`
	Used           int   `json:"used"`
	Remaining      int   `json:"remaining"`
	ResetInSeconds int64 `json:"reset_in_seconds"`
}
