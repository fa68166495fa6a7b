package timezone_test

import (
	"testing"
	"time"

	"lodge/shared/timezone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowUsesAppLocation(t *testing.T) {
	now := timezone.Now()

	assert.False(t, now.IsZero())
	assert.Equal(t, timezone.GetLocation(), now.Location())
}

func TestParseDate(t *testing.T) {
	got, err := timezone.ParseDate("2025-06-01")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = timezone.ParseDate("01/06/2025")
	assert.Error(t, err)
}

func TestDateDropsTimeOfDay(t *testing.T) {
	loc := timezone.GetLocation()
	in := time.Date(2025, 7, 2, 23, 15, 0, 0, loc)

	assert.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), timezone.Date(in))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2025-08-01", timezone.FormatDate(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, timezone.FormatDate(time.Time{}))
}
