package rational

import "testing"

func TestRescaledFloors(t *testing.T) {
	cases := []struct {
		name string
		in   Time
		rate int64
		want Time
	}{
		{"exact", NewTime(48, 24), 24, NewTime(48, 24)},
		{"up", NewTime(1, 1), 24, NewTime(24, 24)},
		{"down-floors", NewTime(25, 24), 1, NewTime(1, 1)},
		{"negative-floors-toward-neg-inf", NewTime(-1, 24), 1, NewTime(-1, 1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.in.Rescaled(c.rate)
			if !got.Equal(c.want) {
				t.Errorf("Rescaled(%v, %d) = %v, want %v", c.in, c.rate, got, c.want)
			}
		})
	}
}

func TestCompareCrossRate(t *testing.T) {
	a := NewTime(1, 1)
	b := NewTime(24, 24)
	if !a.Equal(b) {
		t.Errorf("expected %v == %v", a, b)
	}
	c := NewTime(25, 24)
	if !c.Greater(a) {
		t.Errorf("expected %v > %v", c, a)
	}
}

func TestLoopTime(t *testing.T) {
	r := NewTimeRange(NewTime(0, 24), NewTime(10, 24))
	if got := LoopTime(NewTime(10, 24), r); !got.Equal(NewTime(0, 24)) {
		t.Errorf("LoopTime past end = %v, want start", got)
	}
	if got := LoopTime(NewTime(-1, 24), r); !got.Equal(r.EndTimeInclusive()) {
		t.Errorf("LoopTime before start = %v, want end inclusive", got)
	}
	if got := LoopTime(NewTime(5, 24), r); !got.Equal(NewTime(5, 24)) {
		t.Errorf("LoopTime inside range changed value: %v", got)
	}
}

func TestToRangesCoalesces(t *testing.T) {
	frames := []Time{
		NewTime(0, 24), NewTime(1, 24), NewTime(2, 24),
		NewTime(5, 24), NewTime(6, 24),
	}
	ranges := ToRanges(frames)
	if len(ranges) != 2 {
		t.Fatalf("got %d ranges, want 2: %+v", len(ranges), ranges)
	}
	if ranges[0].Start.Value != 0 || ranges[0].EndTimeInclusive().Value != 2 {
		t.Errorf("first range = %+v", ranges[0])
	}
	if ranges[1].Start.Value != 5 || ranges[1].EndTimeInclusive().Value != 6 {
		t.Errorf("second range = %+v", ranges[1])
	}
}

func TestToRangesEmpty(t *testing.T) {
	if got := ToRanges(nil); got != nil {
		t.Errorf("ToRanges(nil) = %v, want nil", got)
	}
}
