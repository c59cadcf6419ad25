package staplelib

import "time"

// Default retry interval values.
const (
	DefShortInterval      = 60 * time.Second
	DefHourlyInterval     = time.Hour
	DefTwiceDailyInterval = 12 * time.Hour
	DefDailyInterval      = 24 * time.Hour
)

// RetryIntervals holds the interval constants of the tiered retry policy.
// The failure counter selects the tier; the intervals themselves are
// configuration, not law.
type RetryIntervals struct {
	Short      time.Duration // first tier, three attempts
	Hourly     time.Duration // second tier
	TwiceDaily time.Duration // degraded tier for bad responses
	Daily      time.Duration // sole tier for HTTP 400
}

// DefaultRetryIntervals returns the standard tier table.
func DefaultRetryIntervals() RetryIntervals {
	return RetryIntervals{
		Short:      DefShortInterval,
		Hourly:     DefHourlyInterval,
		TwiceDaily: DefTwiceDailyInterval,
		Daily:      DefDailyInterval,
	}
}

// shortRetries is the number of attempts in the first tier.
const shortRetries = 3

// NextDelay returns the delay before the next renewal attempt after the
// given consecutive failure count (1-based, counted after the failure
// being classified). The second return is false when the error class
// permits no automatic retry.
//
// The counter keeps climbing across tiers; it is never reset by a tier
// change, only by a success or a source file change.
func (r RetryIntervals) NextDelay(kind ErrorKind, failures int) (time.Duration, bool) {
	if failures < 1 {
		failures = 1
	}
	switch kind {
	case KindNetwork, KindHTTPError:
		// Three short retries, then hourly, uncapped.
		if failures <= shortRetries {
			return r.Short, true
		}
		return r.Hourly, true

	case KindBadResponse:
		// Three short, three hourly, then degrade to twice-daily.
		if failures <= shortRetries {
			return r.Short, true
		}
		if failures <= 2*shortRetries {
			return r.Hourly, true
		}
		return r.TwiceDaily, true

	case KindHTTPBadRequest:
		// No short tier. The request is rejected outright, so hammering
		// the responder buys nothing.
		return r.Daily, true

	case KindPersist:
		// Three short, then hourly. The caller escalates to an
		// operational alert once the hourly tier is reached.
		if failures <= shortRetries {
			return r.Short, true
		}
		return r.Hourly, true

	default:
		// KindTerminal and anything unclassified: no retry.
		return 0, false
	}
}

// Escalated reports whether the failure count for the given kind has
// exhausted the bounded tiers and deserves an operational alert.
func (r RetryIntervals) Escalated(kind ErrorKind, failures int) bool {
	return kind == KindPersist && failures > 2*shortRetries
}
