package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInterval(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return NewInterval(s, e)
}

func TestInterval_Overlaps(t *testing.T) {
	base := mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T11:00:00Z")

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{
			name:  "identical intervals overlap",
			other: mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T11:00:00Z"),
			want:  true,
		},
		{
			name:  "partial overlap at the end",
			other: mustInterval(t, "2030-01-07T10:30:00Z", "2030-01-07T11:30:00Z"),
			want:  true,
		},
		{
			name:  "contained interval overlaps",
			other: mustInterval(t, "2030-01-07T10:15:00Z", "2030-01-07T10:45:00Z"),
			want:  true,
		},
		{
			name:  "touching at the end does not overlap",
			other: mustInterval(t, "2030-01-07T11:00:00Z", "2030-01-07T12:00:00Z"),
			want:  false,
		},
		{
			name:  "touching at the start does not overlap",
			other: mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T10:00:00Z"),
			want:  false,
		},
		{
			name:  "disjoint intervals do not overlap",
			other: mustInterval(t, "2030-01-07T14:00:00Z", "2030-01-07T15:00:00Z"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestInterval_Validate(t *testing.T) {
	valid := mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T11:00:00Z")
	assert.NoError(t, valid.Validate())

	inverted := NewInterval(valid.End, valid.Start)
	assert.Error(t, inverted.Validate())

	empty := NewInterval(valid.Start, valid.Start)
	assert.Error(t, empty.Validate())

	assert.Error(t, Interval{}.Validate())
}

func TestInterval_Subtract(t *testing.T) {
	base := mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T12:00:00Z")

	t.Run("hole in the middle splits in two", func(t *testing.T) {
		remaining := base.Subtract(mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T10:30:00Z"))
		require.Len(t, remaining, 2)
		assert.Equal(t, mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T10:00:00Z"), remaining[0])
		assert.Equal(t, mustInterval(t, "2030-01-07T10:30:00Z", "2030-01-07T12:00:00Z"), remaining[1])
	})

	t.Run("overlap at the start trims the head", func(t *testing.T) {
		remaining := base.Subtract(mustInterval(t, "2030-01-07T08:00:00Z", "2030-01-07T10:00:00Z"))
		require.Len(t, remaining, 1)
		assert.Equal(t, mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T12:00:00Z"), remaining[0])
	})

	t.Run("covering interval removes everything", func(t *testing.T) {
		remaining := base.Subtract(mustInterval(t, "2030-01-07T08:00:00Z", "2030-01-07T13:00:00Z"))
		assert.Empty(t, remaining)
	})

	t.Run("disjoint interval removes nothing", func(t *testing.T) {
		remaining := base.Subtract(mustInterval(t, "2030-01-07T13:00:00Z", "2030-01-07T14:00:00Z"))
		require.Len(t, remaining, 1)
		assert.Equal(t, base, remaining[0])
	})

	t.Run("touching interval removes nothing", func(t *testing.T) {
		remaining := base.Subtract(mustInterval(t, "2030-01-07T12:00:00Z", "2030-01-07T13:00:00Z"))
		require.Len(t, remaining, 1)
		assert.Equal(t, base, remaining[0])
	})
}

func TestInterval_Intersect(t *testing.T) {
	base := mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T12:00:00Z")

	got, ok := base.Intersect(mustInterval(t, "2030-01-07T11:00:00Z", "2030-01-07T13:00:00Z"))
	require.True(t, ok)
	assert.Equal(t, mustInterval(t, "2030-01-07T11:00:00Z", "2030-01-07T12:00:00Z"), got)

	_, ok = base.Intersect(mustInterval(t, "2030-01-07T12:00:00Z", "2030-01-07T13:00:00Z"))
	assert.False(t, ok)
}

func TestInterval_Covers(t *testing.T) {
	base := mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T12:00:00Z")

	assert.True(t, base.Covers(mustInterval(t, "2030-01-07T09:00:00Z", "2030-01-07T12:00:00Z")))
	assert.True(t, base.Covers(mustInterval(t, "2030-01-07T10:00:00Z", "2030-01-07T11:00:00Z")))
	assert.False(t, base.Covers(mustInterval(t, "2030-01-07T11:00:00Z", "2030-01-07T12:30:00Z")))
}

func TestNewInterval_NormalizesToUTC(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	local := time.Date(2030, time.January, 7, 10, 0, 0, 0, lagos)
	interval := NewInterval(local, local.Add(time.Hour))

	assert.Equal(t, time.UTC, interval.Start.Location())
	assert.Equal(t, 9, interval.Start.Hour())
}
