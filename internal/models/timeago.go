package models

import (
	"fmt"
	"time"
)

// MinutesAgo returns the elapsed time in whole minutes, rounded down
func MinutesAgo(elapsed time.Duration) int {
	minutes := elapsed / time.Minute
	if elapsed < 0 && elapsed%time.Minute != 0 {
		minutes--
	}
	return int(minutes)
}

// TimeAgo formats an elapsed duration as "3 minutes ago", "1 hour and 5 minutes ago" etc.
func TimeAgo(elapsed time.Duration) string {
	minutes := MinutesAgo(elapsed)
	if minutes <= 0 {
		return "just now"
	}

	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		remainingHours := hours % 24
		if remainingHours == 0 {
			return plural(days, "day") + " ago"
		}
		return plural(days, "day") + " and " + plural(remainingHours, "hour") + " ago"
	case hours > 0:
		remainingMinutes := minutes % 60
		if remainingMinutes == 0 {
			return plural(hours, "hour") + " ago"
		}
		return plural(hours, "hour") + " and " + plural(remainingMinutes, "minute") + " ago"
	default:
		return plural(minutes, "minute") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
