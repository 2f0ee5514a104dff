package bufferpool

// fifoReplacer evicts in load order. Frames are refilled in place, so the
// positional scan from front visits them oldest first.
type fifoReplacer struct {
	frameSet
	front int
}

func newFIFOReplacer(capacity int) *fifoReplacer {
	return &fifoReplacer{frameSet: newFrameSet(capacity)}
}

func (r *fifoReplacer) RecordLoad(frameID int) {
	if r.valid(frameID) {
		r.track(frameID)
	}
}

// Hits do not change load order.
func (r *fifoReplacer) RecordAccess(int) {}

// Restore puts the scan back on frameID so it is still the oldest.
func (r *fifoReplacer) Restore(frameID int) {
	if !r.valid(frameID) {
		return
	}
	r.reinstate(frameID)
	r.front = frameID
}

func (r *fifoReplacer) Evict() (int, bool) {
	n := len(r.present)
	if r.size == 0 {
		return -1, false
	}
	for i := range n {
		idx := (r.front + i) % n
		if r.candidate(idx) {
			r.untrack(idx)
			r.front = (idx + 1) % n
			return idx, true
		}
	}
	return -1, false
}
