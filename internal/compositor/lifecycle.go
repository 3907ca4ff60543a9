package compositor

import "github.com/visiona/tlplay/internal/rational"

// SetActiveRanges records the ranges the Frame Cache currently considers
// "in play" (its read-ahead/read-behind window). The Compositor uses
// this on the next GC pass to decide which open readers are no longer
// needed, exactly the original's setActiveRanges/stopReaders coupling.
func (c *Compositor) SetActiveRanges(ranges []rational.TimeRange) {
	c.mu.Lock()
	c.activeRanges = append([]rational.TimeRange(nil), ranges...)
	c.mu.Unlock()
}

// GC runs one pass of reader lifecycle maintenance: it stops any reader
// whose clip range no longer intersects the active ranges and has no
// pending requests (stopReaders), and reaps any previously-stopped
// reader that has now fully drained (delReaders). The Playback
// Controller's tick calls it right after each Frame Cache update,
// matching the original's frameCacheUpdate calling both in sequence
// every tick.
func (c *Compositor) GC() {
	c.stopReaders()
	c.delReaders()
}

func (c *Compositor) stopReaders() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, mr := range c.readers {
		if c.intersectsActive(mr.clipRange) {
			continue
		}
		if mr.handle.HasPending() {
			continue
		}
		mr.handle.Stop()
		c.stoppedReaders = append(c.stoppedReaders, mr)
		delete(c.readers, key)
	}
}

func (c *Compositor) delReaders() {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.stoppedReaders[:0]
	for _, mr := range c.stoppedReaders {
		if !mr.handle.HasStopped() {
			remaining = append(remaining, mr)
		}
	}
	c.stoppedReaders = remaining
}

func (c *Compositor) intersectsActive(r rational.TimeRange) bool {
	if len(c.activeRanges) == 0 {
		return false
	}
	for _, ar := range c.activeRanges {
		if r.Intersects(ar) {
			return true
		}
	}
	return false
}

// CancelAll forwards cancel_all to every currently open reader, clearing
// their outstanding requests without stopping them — spec's seek
// contract: a fresh position invalidates in-flight decodes for the old
// one, but the readers themselves stay open for the Frame Cache's next
// Update pass to reuse.
func (c *Compositor) CancelAll() {
	c.mu.Lock()
	readers := make([]*managedReader, 0, len(c.readers))
	for _, mr := range c.readers {
		readers = append(readers, mr)
	}
	c.mu.Unlock()

	for _, mr := range readers {
		mr.handle.CancelAll()
	}
}

// OpenReaderCount reports the number of currently-open (non-stopped)
// readers, used by tests asserting reader-minimality (spec's invariant
// that the Compositor never keeps more readers open than the active
// window requires).
func (c *Compositor) OpenReaderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readers)
}
