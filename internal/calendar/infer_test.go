package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousExpectedWeekly(t *testing.T) {
	t.Parallel()

	// From a Thursday, the previous Monday run is three days back.
	got, ok := PreviousExpected("0402", date(2025, time.March, 6))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 3), got)
}

func TestPreviousExpectedExcludesAnchor(t *testing.T) {
	t.Parallel()

	// Anchoring on a Monday returns the Monday before, not the anchor.
	got, ok := PreviousExpected("0402", date(2025, time.March, 3))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.February, 24), got)
}

func TestNextExpectedQuarterly(t *testing.T) {
	t.Parallel()

	got, ok := NextExpected("0800", date(2025, time.February, 10))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.April, 1), got)
}

func TestNextExpectedOutOfWindow(t *testing.T) {
	t.Parallel()

	// Semiannual from early July: the next run is the following
	// January, beyond the 120-day window.
	_, ok := NextExpected("1000", date(2025, time.July, 2))
	assert.False(t, ok)
}

func TestSearchUnknownCode(t *testing.T) {
	t.Parallel()

	_, ok := PreviousExpected("4242", date(2025, time.March, 6))
	assert.False(t, ok)
	_, ok = NextExpected("4242", date(2025, time.March, 6))
	assert.False(t, ok)
}

func TestNearest(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.March, 10)
	candidates := []time.Time{
		date(2025, time.March, 1),
		date(2025, time.March, 8),
		date(2025, time.March, 20),
	}

	got, ok := Nearest(ref, candidates, 5)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 8), got)
}

func TestNearestRespectsMaxDistance(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.March, 10)
	candidates := []time.Time{date(2025, time.March, 1)}

	_, ok := Nearest(ref, candidates, 5)
	assert.False(t, ok)

	got, ok := Nearest(ref, candidates, 9)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 1), got)
}

func TestNearestTieFirstWins(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.March, 10)
	candidates := []time.Time{
		date(2025, time.March, 12),
		date(2025, time.March, 8),
	}

	// Equidistant: the first candidate in iteration order wins.
	got, ok := Nearest(ref, candidates, 5)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 12), got)
}

func TestNearestEmpty(t *testing.T) {
	t.Parallel()

	_, ok := Nearest(date(2025, time.March, 10), nil, 30)
	assert.False(t, ok)
}
