package caredate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei = time.FixedZone("CST", 8*3600)

func TestParseTimestamp(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
	}{
		{"2024/9/26 下午3:04:05", time.Date(2024, 9, 26, 15, 4, 5, 0, taipei)},
		{"2024/9/26 上午12:30:00", time.Date(2024, 9, 26, 0, 30, 0, 0, taipei)},
		{"2024/9/26 下午12:00:00", time.Date(2024, 9, 26, 12, 0, 0, 0, taipei)},
		{"2024/12/1 上午9:05:00", time.Date(2024, 12, 1, 9, 5, 0, 0, taipei)},
		{"2024/09/26 18:20:00", time.Date(2024, 9, 26, 18, 20, 0, 0, taipei)},
		{"2024-09-26", time.Date(2024, 9, 26, 0, 0, 0, 0, taipei)},
		{"2024/9/26", time.Date(2024, 9, 26, 0, 0, 0, 0, taipei)},
		{"2024-09-26T07:04:05.000Z", time.Date(2024, 9, 26, 7, 4, 5, 0, time.UTC)},
		{"2024-09-26T07:04:05", time.Date(2024, 9, 26, 7, 4, 5, 0, taipei)},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in, taipei)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024/13/01", "2024/2/31", "2024-09-26Tnoon"} {
		_, err := ParseTimestamp(in, taipei)
		assert.ErrorIs(t, err, ErrUnparseable, in)
	}
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2024/9/26 下午11:59:59", taipei)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-26", DayKey(day))
	assert.Equal(t, 0, day.Hour())

	// 2024-09-26T20:00Z is already the 27th in UTC+8
	day, err = ParseDay("2024-09-26T20:00:00.000Z", taipei)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-27", DayKey(day))

	_, err = ParseDay("not a date", taipei)
	assert.Error(t, err)
}

func TestFormatLocale(t *testing.T) {
	testCases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 9, 26, 15, 4, 5, 0, taipei), "2024/9/26 下午3:04:05"},
		{time.Date(2024, 1, 2, 0, 7, 9, 0, taipei), "2024/1/2 上午12:07:09"},
		{time.Date(2024, 1, 2, 12, 0, 0, 0, taipei), "2024/1/2 下午12:00:00"},
		{time.Date(2024, 11, 20, 9, 30, 0, 0, taipei), "2024/11/20 上午9:30:00"},
	}
	for _, tc := range testCases {
		got := FormatLocale(tc.in)
		assert.Equal(t, tc.want, got)

		back, err := ParseTimestamp(got, taipei)
		require.NoError(t, err)
		assert.True(t, tc.in.Equal(back))
	}
}

func TestDatePartAndMonthDay(t *testing.T) {
	assert.Equal(t, "2024/9/26", DatePart("2024/9/26 下午3:04:05"))
	assert.Equal(t, "2024-09-26T07:04:05Z", DatePart("2024-09-26T07:04:05Z"))
	assert.Equal(t, "09/26", MonthDay(time.Date(2024, 9, 26, 0, 0, 0, 0, taipei)))
}
