package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tf   string
		want int64
	}{
		{"1D", 86400},
		{"D1", 86400},
		{"1H", 3600},
		{"5m", 300},
		{"M15", 900},
		{"1W", 604800},
	}
	for _, tt := range tests {
		got, err := TimeframeSeconds(tt.tf)
		require.NoError(t, err, tt.tf)
		assert.Equal(t, tt.want, got, tt.tf)
	}

	_, err := TimeframeSeconds("1Y")
	assert.Error(t, err)
}

func TestStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		tf   string
		want bool
	}{
		{"daily from today", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "1D", false},
		{"daily from yesterday", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "1D", true},
		{"hourly fresh", now.Add(-30 * time.Minute), "1H", false},
		{"hourly old", now.Add(-61 * time.Minute), "1H", true},
		{"five minutes old", now.Add(-6 * time.Minute), "5m", true},
		{"unknown", now, "1Y", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Stale(tt.last, tt.tf, now))
		})
	}
}

func TestChartStoreStale(t *testing.T) {
	t.Parallel()

	s := NewChartStore(t.TempDir())
	now := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)

	stale, err := s.Stale("AAPL", "1D", now)
	require.NoError(t, err)
	assert.True(t, stale, "empty cache")

	_, err = s.Save("AAPL", "1D", []Candle{{Time: day(4), Close: 104}, {Time: day(5), Close: 105}})
	require.NoError(t, err)
	stale, err = s.Stale("AAPL", "1D", now)
	require.NoError(t, err)
	assert.False(t, stale)

	stale, err = s.Stale("AAPL", "1D", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, stale)
}
