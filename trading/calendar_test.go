package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, CST)
}

func TestFirstOfPeriodMonthly(t *testing.T) {
	times := []time.Time{
		day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 31),
		day(2024, 2, 1), day(2024, 2, 29),
		day(2024, 3, 4),
	}
	assert.Equal(t, []int{0, 3, 5}, FirstOfPeriod(times, Monthly))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, FirstOfPeriod(times, Daily))
}

func TestFirstOfPeriodWeekly(t *testing.T) {
	// 2024-01-05 is a Friday, 2024-01-08 the following Monday.
	times := []time.Time{day(2024, 1, 3), day(2024, 1, 5), day(2024, 1, 8), day(2024, 1, 12)}
	assert.Equal(t, []int{0, 2}, FirstOfPeriod(times, Weekly))
}

func TestParseInterval(t *testing.T) {
	for in, want := range map[string]Interval{"1mo": Monthly, "Monthly": Monthly, "1wk": Weekly, "daily": Daily} {
		got, err := ParseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseInterval("1y")
	assert.Error(t, err)
	assert.False(t, Interval("2d").Valid())
}
