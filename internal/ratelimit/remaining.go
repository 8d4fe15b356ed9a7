package ratelimit

import (
	"fmt"
	"time"
)

// TimeRemaining renders the time left until resetAt as "2m 15s", or "15s"
// under a minute. Partial seconds round up. It returns "" once resetAt has
// passed or when resetAt is zero.
func TimeRemaining(resetAt, now time.Time) string {
	if resetAt.IsZero() {
		return ""
	}

	left := resetAt.Sub(now)
	if left <= 0 {
		return ""
	}

	secs := int64((left + time.Second - 1) / time.Second)
	minutes, seconds := secs/60, secs%60

	if minutes == 0 {
		return fmt.Sprintf("%ds", seconds)
	}

	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
