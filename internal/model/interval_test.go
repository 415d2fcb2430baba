package model

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 1, 20, hour, min, 0, 0, time.Local)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{
			name:   "disjoint ranges",
			aStart: at(10, 0), aEnd: at(11, 0),
			bStart: at(13, 0), bEnd: at(14, 0),
			want: false,
		},
		{
			name:   "partial overlap",
			aStart: at(14, 0), aEnd: at(16, 0),
			bStart: at(15, 0), bEnd: at(17, 0),
			want: true,
		},
		{
			name:   "touching boundaries are free",
			aStart: at(14, 0), aEnd: at(16, 0),
			bStart: at(16, 0), bEnd: at(18, 0),
			want: false,
		},
		{
			name:   "containment",
			aStart: at(9, 0), aEnd: at(18, 0),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: true,
		},
		{
			name:   "identical ranges",
			aStart: at(14, 0), aEnd: at(16, 0),
			bStart: at(14, 0), bEnd: at(16, 0),
			want: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := Overlaps(test.aStart, test.aEnd, test.bStart, test.bEnd)
			if got != test.want {
				t.Errorf("Overlaps: got %v, want %v", got, test.want)
			}
			// The test must be symmetric in its arguments.
			if rev := Overlaps(test.bStart, test.bEnd, test.aStart, test.aEnd); rev != got {
				t.Errorf("Overlaps not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestIntervalCovers(t *testing.T) {
	t.Parallel()
	iv := Interval{Start: at(10, 0), End: at(11, 0)}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before start", at(9, 59), false},
		{"exactly at start", at(10, 0), true},
		{"inside", at(10, 30), true},
		{"exactly at end", at(11, 0), false},
		{"after end", at(12, 0), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := iv.Covers(test.t); got != test.want {
				t.Errorf("Covers(%s): got %v, want %v", test.t.Format("15:04"), got, test.want)
			}
		})
	}
}
