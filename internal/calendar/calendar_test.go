package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Run("InclusiveRange", func(t *testing.T) {
		start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

		days, err := Expand(start, end)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, days)
	})

	t.Run("SingleDay", func(t *testing.T) {
		d := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
		days, err := Expand(d, d)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-01"}, days)
	})

	t.Run("StartAfterEnd", func(t *testing.T) {
		start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		_, err := Expand(start, end)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("MonthAndLeapBoundary", func(t *testing.T) {
		start := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		days, err := Expand(start, end)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, days)
	})

	t.Run("AcrossDST", func(t *testing.T) {
		loc, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			t.Skip("tzdata not available")
		}
		start := time.Date(2024, 3, 30, 0, 0, 0, 0, loc)
		end := time.Date(2024, 4, 1, 0, 0, 0, 0, loc)
		days, err := Expand(start, end)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-30", "2024-03-31", "2024-04-01"}, days)
	})
}

func TestExpandCountMatchesDayCount(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for n := 0; n < 400; n += 37 {
		end := start.AddDate(0, 0, n)
		days, err := Expand(start, end)
		require.NoError(t, err)
		assert.Len(t, days, n+1)
		assert.Equal(t, n+1, DayCount(start, end))
	}
}

func TestDayCountLongRanges(t *testing.T) {
	start := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3652059, DayCount(start, end))

	start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 366*3+365+1, DayCount(start, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, DayCount(end, start))
}

func TestParseDay(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		lagos = time.FixedZone("WAT", 3600)
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain date", raw: "2024-03-01", want: "2024-03-01"},
		{name: "padded", raw: " 2024-03-01 ", want: "2024-03-01"},
		{name: "rfc3339 utc late evening", raw: "2024-03-01T23:30:00Z", want: "2024-03-02"},
		{name: "rfc3339 with offset", raw: "2024-03-01T10:00:00+01:00", want: "2024-03-01"},
		{name: "empty", raw: "", wantErr: true},
		{name: "garbage", raw: "01/03/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDay(tt.raw, lagos)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, 0, got.Hour())
		})
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
