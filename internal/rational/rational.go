// Package rational implements exact rational-number time arithmetic for
// the timeline engine: a Time is an integer Value over an integer Rate,
// and a TimeRange is a Start/Duration pair of Times sharing that idea.
//
// Equality and comparison are exact (integer cross-multiplication), never
// float64 comparison, so cache keys and dedup keys built from Time never
// suffer floating point drift across rescales.
package rational

import "fmt"

// Time is a rational point or duration: Value/Rate seconds.
type Time struct {
	Value int64
	Rate  int64
}

// NewTime constructs a Time, panicking on a non-positive rate: a rate of
// zero or less has no meaning as a frame rate and every caller in this
// package controls its own rate literal.
func NewTime(value, rate int64) Time {
	if rate <= 0 {
		panic(fmt.Sprintf("rational: invalid rate %d", rate))
	}
	return Time{Value: value, Rate: rate}
}

// IsValid reports whether t has a usable positive rate.
func (t Time) IsValid() bool {
	return t.Rate > 0
}

// Seconds returns the time as a float64 number of seconds. Used only at
// the boundary (wall-clock diffs, UI); internal comparisons stay exact.
func (t Time) Seconds() float64 {
	return float64(t.Value) / float64(t.Rate)
}

// Rescaled returns t expressed at rate, flooring toward negative infinity
// as tlRender's own rescale-then-floor convention does for read times.
func (t Time) Rescaled(rate int64) Time {
	if rate <= 0 {
		panic(fmt.Sprintf("rational: invalid rate %d", rate))
	}
	if t.Rate == rate {
		return t
	}
	num := t.Value * rate
	den := t.Rate
	return Time{Value: floorDiv(num, den), Rate: rate}
}

// Floor returns t with Value floored to an integer frame at its own rate.
// Time is already integer-valued internally, so Floor is the identity;
// it exists to mirror the original C++'s explicit floor(value) call sites
// and to make that intent visible at call sites ported from it.
func (t Time) Floor() Time {
	return t
}

// Add returns t+o, rescaling o to t's rate first if rates differ.
func (t Time) Add(o Time) Time {
	if t.Rate == o.Rate {
		return Time{Value: t.Value + o.Value, Rate: t.Rate}
	}
	return Time{Value: t.Value + o.Rescaled(t.Rate).Value, Rate: t.Rate}
}

// Sub returns t-o, rescaling o to t's rate first if rates differ.
func (t Time) Sub(o Time) Time {
	if t.Rate == o.Rate {
		return Time{Value: t.Value - o.Value, Rate: t.Rate}
	}
	return Time{Value: t.Value - o.Rescaled(t.Rate).Value, Rate: t.Rate}
}

// Compare returns -1, 0, or 1 for t<o, t==o, t>o, comparing exactly via
// cross-multiplication regardless of differing rates.
func (t Time) Compare(o Time) int {
	lhs := t.Value * o.Rate
	rhs := o.Value * t.Rate
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func (t Time) Less(o Time) bool         { return t.Compare(o) < 0 }
func (t Time) LessEqual(o Time) bool    { return t.Compare(o) <= 0 }
func (t Time) Greater(o Time) bool      { return t.Compare(o) > 0 }
func (t Time) GreaterEqual(o Time) bool { return t.Compare(o) >= 0 }
func (t Time) Equal(o Time) bool        { return t.Compare(o) == 0 }

func (t Time) String() string {
	return fmt.Sprintf("%d/%d", t.Value, t.Rate)
}

// floorDiv floors toward negative infinity, unlike Go's truncating /.
func floorDiv(a, b int64) int64 {
	q := a / b
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}
