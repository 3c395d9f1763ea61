package restapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStaleDetector(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC)

	tests := []struct {
		name        string
		threshold   time.Duration
		lastSuccess time.Time
		wantStale   bool
		wantAge     time.Duration
	}{
		{"never polled", DefaultStaleThreshold, time.Time{}, false, 0},
		{"fresh", DefaultStaleThreshold, now.Add(-30 * time.Second), false, 30 * time.Second},
		{"exactly at threshold", DefaultStaleThreshold, now.Add(-DefaultStaleThreshold), false, DefaultStaleThreshold},
		{"past threshold", DefaultStaleThreshold, now.Add(-16 * time.Minute), true, 16 * time.Minute},
		{"custom threshold", time.Minute, now.Add(-2 * time.Minute), true, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewStaleDetector().WithThreshold(tt.threshold)
			assert.Equal(t, tt.wantStale, d.Check(tt.lastSuccess, now))
			assert.Equal(t, tt.wantAge, d.Age(tt.lastSuccess, now))
		})
	}
}
