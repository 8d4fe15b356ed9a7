package ratelimit

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	errMissingFields = errors.New("missing required fields")
	errNegativeCount = errors.New("negative attempt count")
	errFutureWindow  = errors.New("window starts more than one window in the future")
)

// State is the record tracked for a storage key.
type State struct {
	AttemptCount int
	// WindowStart is the epoch millisecond the current window began.
	WindowStart int64
}

// Expired reports whether the window has fully elapsed at now.
func (s State) Expired(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-s.WindowStart >= window.Milliseconds()
}

// ResetAt is the instant the window ends.
func (s State) ResetAt(window time.Duration) time.Time {
	return time.UnixMilli(s.WindowStart + window.Milliseconds())
}

type wireState struct {
	AttemptCount *int   `json:"attemptCount"`
	WindowStart  *int64 `json:"windowStartTimestamp"`
}

func encodeState(s State) (string, error) {
	payload, err := json.Marshal(wireState{
		AttemptCount: &s.AttemptCount,
		WindowStart:  &s.WindowStart,
	})
	if err != nil {
		return "", err
	}

	return string(payload), nil
}

func decodeState(raw string) (State, error) {
	var w wireState
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return State{}, err
	}

	if w.AttemptCount == nil || w.WindowStart == nil {
		return State{}, errMissingFields
	}

	if *w.AttemptCount < 0 {
		return State{}, errNegativeCount
	}

	return State{AttemptCount: *w.AttemptCount, WindowStart: *w.WindowStart}, nil
}
