package restapi

import (
	"time"
)

// DefaultStaleThreshold is how long the board may go without a successful
// poll before health reports the feed as stale.
const DefaultStaleThreshold = 15 * time.Minute

type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{
		threshold: DefaultStaleThreshold,
	}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

// Check reports whether data last refreshed at lastSuccess is too old. A
// zero lastSuccess means no poll has succeeded yet and is not stale.
func (d *StaleDetector) Check(lastSuccess, currentTime time.Time) bool {
	if lastSuccess.IsZero() {
		return false
	}
	return d.Age(lastSuccess, currentTime) > d.threshold
}

func (d *StaleDetector) Age(lastSuccess, currentTime time.Time) time.Duration {
	if lastSuccess.IsZero() {
		return 0
	}
	return currentTime.Sub(lastSuccess)
}
