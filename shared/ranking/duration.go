package ranking

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// isoDuration matches the subset of ISO 8601 durations YouTube emits
// (e.g. "PT45S", "PT2H15M30S", "P1DT3H"). Components are optional but ordered.
var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?)?$`)

// ParseDuration converts an ISO 8601 duration into whole seconds.
// Empty or malformed input yields 0 so one bad record never aborts a batch.
func ParseDuration(duration string) int {
	duration = strings.ToUpper(strings.TrimSpace(duration))
	if duration == "" {
		return 0
	}

	matches := isoDuration.FindStringSubmatch(duration)
	if matches == nil {
		return 0
	}

	units := []int{24 * 3600, 3600, 60, 1}
	var totalSeconds int
	for i, unit := range units {
		component := matches[i+1]
		if component == "" {
			continue
		}
		n, err := strconv.Atoi(component)
		if err != nil {
			// Only possible on overflow.
			return 0
		}
		if n > (math.MaxInt-totalSeconds)/unit {
			return 0
		}
		totalSeconds += n * unit
	}

	return totalSeconds
}

// DurationMinutes converts seconds to fractional minutes for display.
func DurationMinutes(seconds int) float64 {
	return float64(seconds) / 60
}
