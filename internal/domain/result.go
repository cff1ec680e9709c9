package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckResult is one observation of a server. StatusCode is 0 when the
// connection failed outright. Immutable once created.
type CheckResult struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"statusCode"`
	IsOnline   bool      `json:"isOnline"`
}

// NewResult stamps a check observation with a fresh id and the current time.
func NewResult(code int, online bool) CheckResult {
	return CheckResult{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		StatusCode: code,
		IsOnline:   online,
	}
}

// Classify reports whether an observed status code counts as online for a
// server expecting the given code. A zero expected code falls back to the
// 2xx range; a zero observed code means the connection never completed.
func Classify(code, expected int) bool {
	if code == 0 {
		return false
	}
	if expected != 0 {
		return code == expected
	}
	return code >= 200 && code <= 299
}
