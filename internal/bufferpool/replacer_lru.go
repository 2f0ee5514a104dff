package bufferpool

// lruReplacer stamps each frame with a logical clock on every pin and
// evicts the smallest stamp. Equal stamps fall to the lowest frame index.
type lruReplacer struct {
	frameSet
	stamps []uint64
	tick   uint64
}

func newLRUReplacer(capacity int) *lruReplacer {
	fs := newFrameSet(capacity)
	return &lruReplacer{frameSet: fs, stamps: make([]uint64, len(fs.present))}
}

func (r *lruReplacer) RecordLoad(frameID int) {
	if !r.valid(frameID) {
		return
	}
	r.track(frameID)
	r.touch(frameID)
}

func (r *lruReplacer) RecordAccess(frameID int) {
	if !r.valid(frameID) || !r.present[frameID] {
		return
	}
	r.touch(frameID)
}

func (r *lruReplacer) touch(frameID int) {
	r.tick++
	r.stamps[frameID] = r.tick
}

func (r *lruReplacer) Evict() (int, bool) {
	if r.size == 0 {
		return -1, false
	}
	victim := -1
	for idx := range r.present {
		if !r.candidate(idx) {
			continue
		}
		if victim < 0 || r.stamps[idx] < r.stamps[victim] {
			victim = idx
		}
	}
	if victim < 0 {
		return -1, false
	}
	r.untrack(victim)
	return victim, true
}

// Restore keeps the stamp the frame had, so it stays least recent.
func (r *lruReplacer) Restore(frameID int) {
	if r.valid(frameID) {
		r.reinstate(frameID)
	}
}
