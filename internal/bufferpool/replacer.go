package bufferpool

// frameSet tracks which frames a replacer knows about and which of those
// may be evicted. The FIFO, LRU and LFU replacers share it.
type frameSet struct {
	present   []bool
	evictable []bool
	size      int
}

func newFrameSet(capacity int) frameSet {
	if capacity <= 0 {
		capacity = 1
	}
	return frameSet{
		present:   make([]bool, capacity),
		evictable: make([]bool, capacity),
	}
}

func (s *frameSet) valid(id int) bool {
	return id >= 0 && id < len(s.present)
}

func (s *frameSet) track(id int) {
	s.present[id] = true
}

// reinstate tracks id again as evictable.
func (s *frameSet) reinstate(id int) {
	s.present[id] = true
	if !s.evictable[id] {
		s.evictable[id] = true
		s.size++
	}
}

func (s *frameSet) candidate(id int) bool {
	return s.present[id] && s.evictable[id]
}

func (s *frameSet) SetEvictable(id int, e bool) {
	if !s.valid(id) || !s.present[id] || s.evictable[id] == e {
		return
	}
	s.evictable[id] = e
	if e {
		s.size++
	} else {
		s.size--
	}
}

func (s *frameSet) untrack(id int) {
	if s.evictable[id] {
		s.size--
	}
	s.present[id] = false
	s.evictable[id] = false
}

func (s *frameSet) Remove(id int) {
	if !s.valid(id) || !s.present[id] {
		return
	}
	s.untrack(id)
}

func (s *frameSet) Size() int { return s.size }
