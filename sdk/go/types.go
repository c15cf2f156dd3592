package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rankview/core"
)

// Leaderboard mirrors the JSON surface of the server's leaderboard snapshot.
type Leaderboard struct {
	TimeFrame     core.TimeFrame          `json:"timeframe"`
	DataTimeFrame core.TimeFrame          `json:"data_timeframe"`
	Entries       []core.LeaderboardEntry `json:"entries"`
	Loading       bool                    `json:"loading"`
	Error         string                  `json:"error,omitempty"`
	Generation    uint64                  `json:"generation"`
	Version       uint64                  `json:"version"`
	UpdatedAt     *time.Time              `json:"updated_at,omitempty"`
}

// Profile mirrors the server's profile snapshot; Profile is nil without a session.
type Profile struct {
	Profile   *core.User `json:"profile"`
	Loading   bool       `json:"loading"`
	Error     string     `json:"error,omitempty"`
	Version   uint64     `json:"version"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Task identifies a command accepted but not yet settled.
type Task struct {
	TaskID  string `json:"task_id"`
	Command string `json:"command"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int             `json:"-"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
