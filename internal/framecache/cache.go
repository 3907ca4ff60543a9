// Package framecache implements the Frame Cache: a bounded ordered map
// of decoded Frames keyed by presentation time, with a read-ahead/
// read-behind population policy driven by a moving current time and
// playback direction. The update algorithm is ported from the original
// player's Private::frameCacheUpdate: step backward read_behind frames,
// then walk forward collecting read_ahead+read_behind frames (wrapping
// via loopTime, breaking early on a second visit to the first frame),
// evict anything outside that window, and issue reads for everything
// inside it that isn't cached yet.
package framecache

import (
	"context"
	"sync"

	"github.com/visiona/tlplay/internal/compositor"
	"github.com/visiona/tlplay/internal/rational"
)

// Direction is the playback direction the cache should read ahead in.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Cache holds decoded Frames and manages which ones are resident,
// driven by Update calls from the Playback Controller's tick loop.
type Cache struct {
	comp *compositor.Compositor

	mu           sync.Mutex
	frames       map[rational.Time]*compositor.Frame
	readAhead    int64
	readBehind   int64
	pending      map[rational.Time]struct{}

	inFlightWG sync.WaitGroup
}

// New constructs a Cache reading from comp, with the given read-ahead
// and read-behind frame counts (not seconds — cmd/tlplay converts its
// configured seconds to frame counts at the timeline's rate before
// calling New).
func New(comp *compositor.Compositor, readAhead, readBehind int64) *Cache {
	return &Cache{
		comp:       comp,
		frames:     make(map[rational.Time]*compositor.Frame),
		pending:    make(map[rational.Time]struct{}),
		readAhead:  readAhead,
		readBehind: readBehind,
	}
}

// SetReadRange updates the read-ahead/read-behind frame counts, taking
// effect on the next Update call.
func (c *Cache) SetReadRange(readAhead, readBehind int64) {
	c.mu.Lock()
	c.readAhead, c.readBehind = readAhead, readBehind
	c.mu.Unlock()
}

// Get returns the cached Frame at t, if resident.
func (c *Cache) Get(t rational.Time) (*compositor.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.frames[t]
	return f, ok
}

// CachedTimes returns every currently-resident frame time, unsorted.
func (c *Cache) CachedTimes() []rational.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rational.Time, 0, len(c.frames))
	for t := range c.frames {
		out = append(out, t)
	}
	return out
}

// CachedRanges returns the currently-resident frame times coalesced into
// TimeRanges, for reporting on the cached_frames observable.
func (c *Cache) CachedRanges() []rational.TimeRange {
	return rational.ToRanges(c.CachedTimes())
}

// Update runs one pass of the cache policy around currentTime within
// playRange, issuing async reads for newly-needed frames and evicting
// frames that fall outside the resulting window. It reports the active
// window (the range read requests were issued over) so the Compositor's
// reader GC can use the same window.
func (c *Cache) Update(ctx context.Context, currentTime rational.Time, playRange rational.TimeRange, dir Direction) []rational.TimeRange {
	c.mu.Lock()
	readAhead, readBehind := c.readAhead, c.readBehind
	c.mu.Unlock()

	window := computeWindow(currentTime, playRange, dir, readAhead, readBehind)

	c.evictOutside(window)
	c.requestMissing(ctx, window)

	return rational.ToRanges(window)
}

// computeWindow reproduces frameCacheUpdate's frame-by-frame walk: step
// backward read_behind (forward) or read_ahead (reverse) frames from
// currentTime, then walk forward read_ahead+read_behind frames total,
// wrapping with LoopTime and stopping early if the walk wraps back onto
// its own first frame (a play range shorter than the requested window).
func computeWindow(currentTime rational.Time, playRange rational.TimeRange, dir Direction, readAhead, readBehind int64) []rational.Time {
	rate := currentTime.Rate
	step := rational.Time{Value: 1, Rate: rate}

	behindCount := readBehind
	if dir == Reverse {
		behindCount = readAhead
	}

	start := currentTime
	for i := int64(0); i < behindCount; i++ {
		start = rational.LoopTime(start.Sub(step), playRange)
	}

	total := readAhead + readBehind
	frames := make([]rational.Time, 0, total)
	t := start
	for i := int64(0); i < total; i++ {
		if i > 0 && t.Equal(frames[0]) {
			break
		}
		frames = append(frames, t)
		t = rational.LoopTime(t.Add(step), playRange)
	}
	return frames
}

func (c *Cache) evictOutside(window []rational.Time) {
	keep := make(map[rational.Time]struct{}, len(window))
	for _, t := range window {
		keep[t] = struct{}{}
	}

	c.mu.Lock()
	for t := range c.frames {
		if _, ok := keep[t]; !ok {
			delete(c.frames, t)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) requestMissing(ctx context.Context, window []rational.Time) {
	c.mu.Lock()
	var missing []rational.Time
	for _, t := range window {
		if _, cached := c.frames[t]; cached {
			continue
		}
		if _, inFlight := c.pending[t]; inFlight {
			continue
		}
		c.pending[t] = struct{}{}
		missing = append(missing, t)
	}
	c.mu.Unlock()

	for _, t := range missing {
		c.inFlightWG.Add(1)
		go c.fetch(ctx, t)
	}
}

func (c *Cache) fetch(ctx context.Context, t rational.Time) {
	defer c.inFlightWG.Done()
	frame, err := c.comp.Frame(ctx, t)

	c.mu.Lock()
	delete(c.pending, t)
	if err == nil {
		c.frames[t] = frame
	}
	c.mu.Unlock()
}

// CancelAll drops bookkeeping for every pending fetch and forwards
// cancel_all to the Compositor's open readers, so a seek doesn't leave
// new requests queued behind decodes for a position playback has since
// left. Already-cached frames are untouched.
func (c *Cache) CancelAll() {
	c.mu.Lock()
	for t := range c.pending {
		delete(c.pending, t)
	}
	c.mu.Unlock()

	c.comp.CancelAll()
}

// Wait blocks until every in-flight read issued by the most recent
// Update calls has completed. Tests use this to make cache state
// deterministic; the Playback Controller itself never calls it, since
// waiting on decode would defeat the point of async reads.
func (c *Cache) Wait() {
	c.inFlightWG.Wait()
}
