package bufferpool

// lfuReplacer counts hits since load and evicts the smallest count. The scan
// starts one past the previous victim, so ties rotate through the frames.
type lfuReplacer struct {
	frameSet
	freq     []uint64
	hand     int
	prevHand int
}

func newLFUReplacer(capacity int) *lfuReplacer {
	fs := newFrameSet(capacity)
	return &lfuReplacer{frameSet: fs, freq: make([]uint64, len(fs.present))}
}

func (r *lfuReplacer) RecordLoad(frameID int) {
	if !r.valid(frameID) {
		return
	}
	r.track(frameID)
	r.freq[frameID] = 0
}

func (r *lfuReplacer) RecordAccess(frameID int) {
	if !r.valid(frameID) || !r.present[frameID] {
		return
	}
	r.freq[frameID]++
}

func (r *lfuReplacer) Evict() (int, bool) {
	n := len(r.present)
	if r.size == 0 {
		return -1, false
	}
	victim := -1
	for i := range n {
		idx := (r.hand + i) % n
		if !r.candidate(idx) {
			continue
		}
		if victim < 0 || r.freq[idx] < r.freq[victim] {
			victim = idx
		}
	}
	if victim < 0 {
		return -1, false
	}
	r.untrack(victim)
	r.prevHand = r.hand
	r.hand = (victim + 1) % n
	return victim, true
}

// Restore keeps the frame's count and rewinds the tie-break cursor.
func (r *lfuReplacer) Restore(frameID int) {
	if !r.valid(frameID) {
		return
	}
	r.reinstate(frameID)
	r.hand = r.prevHand
}
