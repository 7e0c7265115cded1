package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseDay(t *testing.T) {
	want := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	got, err := ParseDay("2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseDay("2025-03-07T23:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseDay("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDay("07/03/2025")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"btc", "eth"}, SplitList(" btc, ,eth ,"))
	assert.Nil(t, SplitList("  "))
}
