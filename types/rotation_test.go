package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOverdueAndNeedsWarningExclusive(t *testing.T) {
	now := time.Now()
	warning := 24 * time.Hour

	cases := []struct {
		name     string
		next     time.Time
		overdue  bool
		warning  bool
	}{
		{"deadline an hour ago", now.Add(-time.Hour), true, false},
		{"deadline right now", now, true, false},
		{"30 minutes ahead", now.Add(30 * time.Minute), false, true},
		{"23 hours ahead", now.Add(23 * time.Hour), false, true},
		{"3 days ahead", now.Add(72 * time.Hour), false, false},
	}
	for _, tc := range cases {
		record := &RotationRecord{
			PublicKey:    "peerKey",
			NextRotation: tc.next.UnixMilli(),
		}
		assert.Equal(t, tc.overdue, record.IsOverdue(now), tc.name)
		assert.Equal(t, tc.warning, record.NeedsWarning(now, warning), tc.name)
		// never both
		assert.False(t, record.IsOverdue(now) && record.NeedsWarning(now, warning), tc.name)
	}
}

func TestDaysUntilRotation(t *testing.T) {
	now := time.Now()

	record := &RotationRecord{NextRotation: now.Add(7 * 24 * time.Hour).UnixMilli()}
	assert.Equal(t, 6, record.DaysUntilRotation(now.Add(time.Minute)))

	record = &RotationRecord{NextRotation: now.Add(36 * time.Hour).UnixMilli()}
	assert.Equal(t, 1, record.DaysUntilRotation(now))

	// never negative
	record = &RotationRecord{NextRotation: now.Add(-48 * time.Hour).UnixMilli()}
	assert.Equal(t, 0, record.DaysUntilRotation(now))
}
