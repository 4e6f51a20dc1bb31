package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		last time.Time
		next time.Time
	}{
		{
			name: "daily at midnight",
			expr: "0 0 * * *",
			last: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			next: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "every ten minutes",
			expr: "*/10 * * * *",
			last: time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC),
			next: time.Date(2024, 3, 10, 15, 40, 0, 0, time.UTC),
		},
		{
			name: "descriptor",
			expr: "@hourly",
			last: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC),
			next: time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := GetTriggerInfo(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.last, info.Last)
			assert.Equal(t, tt.next, info.Next)
			assert.Equal(t, ref.Sub(tt.last), info.TimeSinceLast)
			assert.Equal(t, tt.next.Sub(ref), info.TimeUntilNext)
		})
	}
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("not a cron", time.Now())
	assert.Error(t, err)
}

func TestPrevious(t *testing.T) {
	ref := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	yearly, err := Parse("0 0 1 1 *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Previous(yearly, ref))

	// February 30th never occurs
	never, err := Parse("0 0 30 2 *")
	require.NoError(t, err)
	assert.True(t, Previous(never, ref).IsZero())
}
