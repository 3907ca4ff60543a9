// Package playback implements the Playback Controller: a presentation
// clock driven by the wall clock, Loop/Once/PingPong loop policies, an
// in/out playback range, and an Observable surface
// (playback/loop/current_time/in_out_range/frame/cached_frames) that a
// UI subscribes to. The tick/loop/seek/setPlayback algorithms are
// ported line-for-line in spirit from the original
// TimelinePlayer.cpp's Private::tick, Private::loopPlayback, and
// TimelinePlayer::setPlayback/seek.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/visiona/tlplay/internal/compositor"
	"github.com/visiona/tlplay/internal/framecache"
	"github.com/visiona/tlplay/internal/observable"
	"github.com/visiona/tlplay/internal/rational"
)

// Playback is the controller's run state.
type Playback int

const (
	Stop Playback = iota
	Forward
	Reverse
)

func (p Playback) String() string {
	switch p {
	case Forward:
		return "Forward"
	case Reverse:
		return "Reverse"
	default:
		return "Stop"
	}
}

// Loop selects how the presentation clock behaves at the in/out range's
// boundaries.
type Loop int

const (
	LoopMode Loop = iota
	Once
	PingPong
)

// TimeAction is one of the convenience seek commands the original
// player exposes beyond raw SetCurrentTime, supplemented here from
// TimelinePlayer.cpp's timeAction dispatcher (the distilled core spec
// never named these, but a complete player needs them).
type TimeAction int

const (
	ActionStart TimeAction = iota
	ActionEnd
	ActionFramePrev
	ActionFramePrevX10
	ActionFramePrevX100
	ActionFrameNext
	ActionFrameNextX10
	ActionFrameNextX100
)

// Controller drives a Cache/Compositor pair on a wall-clock-derived
// presentation clock and exposes every piece of state a UI needs as an
// Observable value.
type Controller struct {
	comp  *compositor.Compositor
	cache *framecache.Cache
	rate  int64

	mu               sync.Mutex
	playback         Playback
	loop             Loop
	fullRange        rational.TimeRange // the timeline's own range; SeekTo wraps against this, never the in/out range
	inOutRange       rational.TimeRange
	currentTime      rational.Time
	playbackStart    rational.Time
	wallStart        time.Time
	direction        Playback // direction used while in PingPong, independent of Playback==Stop

	obsPlayback    *observable.Value[Playback]
	obsLoop        *observable.Value[Loop]
	obsCurrentTime *observable.Value[rational.Time]
	obsInOutRange  *observable.Value[rational.TimeRange]
	obsFrame       *observable.Value[*compositor.Frame]
	obsCached      *observable.List[rational.TimeRange]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Controller over the given timeline range at rate,
// initially stopped at the range's start with LoopMode looping.
func New(comp *compositor.Compositor, cache *framecache.Cache, globalRange rational.TimeRange, rate int64) *Controller {
	c := &Controller{
		comp:        comp,
		cache:       cache,
		rate:        rate,
		fullRange:   globalRange,
		inOutRange:  globalRange,
		currentTime: globalRange.Start,
		direction:   Forward,
	}
	c.obsPlayback = observable.NewValue(Stop, func(a, b Playback) bool { return a == b })
	c.obsLoop = observable.NewValue(LoopMode, func(a, b Loop) bool { return a == b })
	c.obsCurrentTime = observable.NewValue(c.currentTime, func(a, b rational.Time) bool { return a.Equal(b) })
	c.obsInOutRange = observable.NewValue(globalRange, func(a, b rational.TimeRange) bool {
		return a.Start.Equal(b.Start) && a.Duration.Equal(b.Duration)
	})
	c.obsFrame = observable.NewValue[*compositor.Frame](nil, nil)
	c.obsCached = observable.NewList[rational.TimeRange]()
	return c
}

// Observables exposes every subscribable piece of controller state,
// matching spec's required observer surface.
type Observables struct {
	Playback    *observable.Value[Playback]
	Loop        *observable.Value[Loop]
	CurrentTime *observable.Value[rational.Time]
	InOutRange  *observable.Value[rational.TimeRange]
	Frame       *observable.Value[*compositor.Frame]
	CachedFrames *observable.List[rational.TimeRange]
}

func (c *Controller) Observables() Observables {
	return Observables{
		Playback:     c.obsPlayback,
		Loop:         c.obsLoop,
		CurrentTime:  c.obsCurrentTime,
		InOutRange:   c.obsInOutRange,
		Frame:        c.obsFrame,
		CachedFrames: c.obsCached,
	}
}

// Start begins the controller's tick loop, polling roughly every
// millisecond the way the original's cooperative player loop does.
// Stopped by ctx cancellation or Close.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
}

// Close stops the tick loop and waits for it to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick advances the presentation clock from the wall clock diff since
// playback started, applies the loop policy, fetches the frame for the
// resulting time from the cache, updates the cache's read window, and
// runs the compositor's reader GC — ported from Private::tick.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	pb := c.playback
	if pb == Stop {
		c.mu.Unlock()
		return
	}
	diff := time.Since(c.wallStart)
	sign := 1.0
	if pb == Reverse {
		sign = -1.0
	}
	delta := rational.Time{
		Value: int64(diff.Seconds() * float64(c.rate) * sign),
		Rate:  c.rate,
	}
	candidate := c.playbackStart.Add(delta)
	newTime, stopped := c.loopPlayback(candidate, pb)
	c.currentTime = newTime
	if stopped {
		c.playback = Stop
	}
	// A PingPong reflection flips c.playback inside loopPlayback.
	nowPlayback := c.playback
	inOut := c.inOutRange
	dir := framecache.Forward
	if pb == Reverse {
		dir = framecache.Reverse
	}
	c.mu.Unlock()

	c.obsCurrentTime.Set(newTime)
	c.obsPlayback.Set(nowPlayback)

	ranges := c.cache.Update(ctx, newTime, inOut, dir)
	c.comp.SetActiveRanges(ranges)
	c.comp.GC()
	c.obsCached.SetIfChanged(ranges)

	if f, ok := c.cache.Get(newTime); ok {
		c.obsFrame.Set(f)
	}
}

// loopPlayback applies the loop policy to candidate, returning the
// resulting time and whether playback should stop (Once at a boundary).
// Must be called with c.mu held.
func (c *Controller) loopPlayback(candidate rational.Time, pb Playback) (rational.Time, bool) {
	r := c.inOutRange
	switch c.loop {
	case Once:
		if candidate.Less(r.Start) {
			return r.Start, true
		}
		if candidate.Greater(r.EndTimeInclusive()) {
			return r.EndTimeInclusive(), true
		}
		return candidate, false

	case PingPong:
		if candidate.Less(r.Start) {
			c.direction = Forward
			c.resetWallClock(r.Start, Forward)
			return r.Start, false
		}
		if candidate.Greater(r.EndTimeInclusive()) {
			c.direction = Reverse
			c.resetWallClock(r.EndTimeInclusive(), Reverse)
			return r.EndTimeInclusive(), false
		}
		return candidate, false

	default: // LoopMode
		wrapped := rational.LoopTime(candidate, r)
		if !wrapped.Equal(candidate) {
			c.resetWallClock(wrapped, pb)
		}
		return wrapped, false
	}
}

// resetWallClock re-anchors playbackStart/wallStart to from, the same
// re-basing the original does every time loopPlayback wraps or reflects
// — without it, the next tick's diff-from-wallStart would be computed
// against a stale reference and jump.
func (c *Controller) resetWallClock(from rational.Time, pb Playback) {
	c.playbackStart = from
	c.wallStart = time.Now()
	c.playback = pb
}

// SetPlayback starts or stops playback. Starting re-anchors the wall
// clock to the current time; for Once loop mode, starting Reverse
// exactly at the range start (or Forward exactly at the range end) seeks
// to the opposite boundary first, matching setPlayback's edge-case
// handling so Once playback can be replayed by reversing at the end.
func (c *Controller) SetPlayback(pb Playback) {
	c.mu.Lock()
	if pb != Stop {
		if c.loop == Once {
			if pb == Reverse && c.currentTime.Equal(c.inOutRange.Start) {
				c.currentTime = c.inOutRange.EndTimeInclusive()
			} else if pb == Forward && c.currentTime.Equal(c.inOutRange.EndTimeInclusive()) {
				c.currentTime = c.inOutRange.Start
			}
		}
		c.playbackStart = c.currentTime
		c.wallStart = time.Now()
		c.direction = pb
	}
	c.playback = pb
	c.mu.Unlock()

	c.obsPlayback.Set(pb)
}

// SeekTo jumps directly to t, wrapped into the timeline's full range
// (never the narrower in/out range — loop_time(t, full_range), matching
// the original's seek), re-anchoring the wall clock so playback
// continues smoothly from the new position and clearing every pending
// compositor/reader request so they don't block requests for the new
// position.
func (c *Controller) SeekTo(t rational.Time) {
	c.mu.Lock()
	wrapped := rational.LoopTime(t, c.fullRange)
	c.currentTime = wrapped
	c.playbackStart = wrapped
	c.wallStart = time.Now()
	c.mu.Unlock()

	c.cache.CancelAll()
	c.obsCurrentTime.Set(wrapped)
}

// CurrentTime returns the current presentation time.
func (c *Controller) CurrentTime() rational.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// Direction returns the direction PingPong mode is currently moving in.
// It keeps the last moving direction while playback is stopped, so it
// differs from PlaybackState() (which reports Stop) then.
func (c *Controller) Direction() Playback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// PlaybackState returns the current Playback run state.
func (c *Controller) PlaybackState() Playback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// SetLoop sets the loop policy.
func (c *Controller) SetLoop(l Loop) {
	c.mu.Lock()
	c.loop = l
	c.mu.Unlock()
	c.obsLoop.Set(l)
}

// SetInOutRange sets the active playback range, clamping the current
// time into it if necessary.
func (c *Controller) SetInOutRange(r rational.TimeRange) {
	c.mu.Lock()
	c.inOutRange = r
	if c.currentTime.Less(r.Start) || c.currentTime.Greater(r.EndTimeInclusive()) {
		c.currentTime = r.Clamped(c.currentTime)
		c.playbackStart = c.currentTime
		c.wallStart = time.Now()
	}
	c.mu.Unlock()
	c.obsInOutRange.Set(r)
}

// SetInPoint sets the in point to t without disturbing the out point.
func (c *Controller) SetInPoint(t rational.Time) {
	c.mu.Lock()
	r := rational.TimeRange{Start: t, Duration: c.inOutRange.EndTimeExclusive().Sub(t)}
	c.mu.Unlock()
	c.SetInOutRange(r)
}

// SetOutPoint sets the out point to t (inclusive) without disturbing the
// in point.
func (c *Controller) SetOutPoint(t rational.Time) {
	c.mu.Lock()
	duration := t.Sub(c.inOutRange.Start).Add(rational.Time{Value: 1, Rate: t.Rate})
	r := rational.TimeRange{Start: c.inOutRange.Start, Duration: duration}
	c.mu.Unlock()
	c.SetInOutRange(r)
}

// ResetInPoint resets the in point to globalStart.
func (c *Controller) ResetInPoint(globalStart rational.Time) {
	c.SetInPoint(globalStart)
}

// ResetOutPoint resets the out point to globalEndInclusive.
func (c *Controller) ResetOutPoint(globalEndInclusive rational.Time) {
	c.SetOutPoint(globalEndInclusive)
}

// TimeAction dispatches one of the named convenience seeks, ported from
// TimelinePlayer::timeAction.
func (c *Controller) TimeAction(action TimeAction) {
	c.mu.Lock()
	r := c.inOutRange
	t := c.currentTime
	step := rational.Time{Value: 1, Rate: t.Rate}
	c.mu.Unlock()

	switch action {
	case ActionStart:
		c.SeekTo(r.Start)
	case ActionEnd:
		c.SeekTo(r.EndTimeInclusive())
	case ActionFramePrev:
		c.SeekTo(rational.LoopTime(t.Sub(step), r))
	case ActionFramePrevX10:
		c.SeekTo(rational.LoopTime(t.Sub(mul(step, 10)), r))
	case ActionFramePrevX100:
		c.SeekTo(rational.LoopTime(t.Sub(mul(step, 100)), r))
	case ActionFrameNext:
		c.SeekTo(rational.LoopTime(t.Add(step), r))
	case ActionFrameNextX10:
		c.SeekTo(rational.LoopTime(t.Add(mul(step, 10)), r))
	case ActionFrameNextX100:
		c.SeekTo(rational.LoopTime(t.Add(mul(step, 100)), r))
	}
}

func mul(t rational.Time, n int64) rational.Time {
	return rational.Time{Value: t.Value * n, Rate: t.Rate}
}
