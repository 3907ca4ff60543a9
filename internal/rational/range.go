package rational

import "sort"

// TimeRange is a half-open span of time: [Start, Start+Duration).
// Duration.Value is expressed in the same units as Start; following
// OTIO's convention, a one-frame clip has Duration.Value == 1 at its own
// rate. A zero Duration contains no time at all (EndTimeInclusive still
// reports Start for it).
type TimeRange struct {
	Start    Time
	Duration Time
}

// NewTimeRange constructs a TimeRange, rescaling duration to start's rate.
func NewTimeRange(start, duration Time) TimeRange {
	return TimeRange{Start: start, Duration: duration.Rescaled(start.Rate)}
}

// EndTimeExclusive returns Start+Duration, the range's exclusive end.
func (r TimeRange) EndTimeExclusive() Time {
	return r.Start.Add(r.Duration)
}

// EndTimeInclusive returns the last instant inside r: Start+Duration-1
// frame, the convention used throughout the original compositor's loop
// wrap logic (loopTime wraps to end_time_inclusive(), never to the
// exclusive end).
func (r TimeRange) EndTimeInclusive() Time {
	if r.Duration.Value == 0 {
		return r.Start
	}
	return Time{Value: r.EndTimeExclusive().Value - 1, Rate: r.Start.Rate}
}

// Contains reports whether t falls in [Start, EndTimeExclusive).
func (r TimeRange) Contains(t Time) bool {
	return t.GreaterEqual(r.Start) && t.Less(r.EndTimeExclusive())
}

// Intersects reports whether r and o overlap by at least one instant.
func (r TimeRange) Intersects(o TimeRange) bool {
	return r.Start.Less(o.EndTimeExclusive()) && o.Start.Less(r.EndTimeExclusive())
}

// Clamped returns t clamped into [Start, EndTimeInclusive].
func (r TimeRange) Clamped(t Time) Time {
	if t.Less(r.Start) {
		return r.Start
	}
	if t.Greater(r.EndTimeInclusive()) {
		return r.EndTimeInclusive()
	}
	return t
}

// LoopTime wraps t into r the way the original player's loopTime helper
// does: past the inclusive end wraps to Start, before Start wraps to the
// inclusive end. It is a single wrap, not a modulo — callers loop it
// themselves if t can be arbitrarily far outside r.
func LoopTime(t Time, r TimeRange) Time {
	switch {
	case t.Less(r.Start):
		return r.EndTimeInclusive()
	case t.Greater(r.EndTimeInclusive()):
		return r.Start
	default:
		return t
	}
}

// ToRanges sorts frames and coalesces consecutive (delta-1-at-the-same-rate)
// values into contiguous TimeRanges, exactly the original toRanges() used
// to turn a frame-cache key set into the active/cached range list reported
// to observers.
func ToRanges(frames []Time) []TimeRange {
	if len(frames) == 0 {
		return nil
	}
	sorted := make([]Time, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var out []TimeRange
	start := sorted[0]
	prev := sorted[0]
	for _, f := range sorted[1:] {
		if f.Rate == prev.Rate && f.Value-prev.Value <= 1 {
			prev = f
			continue
		}
		out = append(out, rangeFromTo(start, prev))
		start = f
		prev = f
	}
	out = append(out, rangeFromTo(start, prev))
	return out
}

func rangeFromTo(start, endInclusive Time) TimeRange {
	return TimeRange{
		Start:    start,
		Duration: Time{Value: endInclusive.Value - start.Value + 1, Rate: start.Rate},
	}
}
