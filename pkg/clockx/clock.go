package clockx

// Clock implements CLOCK (second-chance) replacement over a fixed number of
// slots. Each tracked slot carries a reference bit; the hand sweeps slots in
// index order, clearing every set bit it passes, pinned or not, and stops at
// the first evictable slot whose bit is already clear.
type Clock struct {
	slots []slot
	hand  int
	size  int // number of evictable slots
}

type slot struct {
	present   bool
	evictable bool
	ref       bool
}

func New(capacity int) *Clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &Clock{slots: make([]slot, capacity)}
}

func (c *Clock) Capacity() int { return len(c.slots) }

// Hand returns the slot the next sweep starts from.
func (c *Clock) Hand() int { return c.hand }

// Referenced reports the reference bit of id.
func (c *Clock) Referenced(id int) bool {
	if !c.valid(id) {
		return false
	}
	return c.slots[id].ref
}

func (c *Clock) valid(id int) bool {
	return id >= 0 && id < len(c.slots)
}

// Touch starts tracking id if needed and sets its reference bit.
func (c *Clock) Touch(id int) {
	if !c.valid(id) {
		return
	}
	s := &c.slots[id]
	s.present = true
	s.ref = true
}

// SetEvictable marks whether a tracked slot may be chosen (pin count zero).
// Unknown slots are ignored.
func (c *Clock) SetEvictable(id int, evictable bool) {
	if !c.valid(id) {
		return
	}
	s := &c.slots[id]
	if !s.present || s.evictable == evictable {
		return
	}

	s.evictable = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict picks a victim, stops tracking it and moves the hand one past it.
// Two full sweeps are enough: the first clears every reference bit, so the
// second must stop at an evictable slot if one exists.
func (c *Clock) Evict() (id int, ok bool) {
	n := len(c.slots)
	if c.size == 0 {
		return -1, false
	}

	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		s := &c.slots[idx]
		if !s.present {
			continue
		}
		if s.ref {
			s.ref = false
			continue
		}
		if !s.evictable {
			continue
		}

		*s = slot{}
		c.size--
		return idx, true
	}

	return -1, false
}

// Reinstate tracks id again as an evictable slot with a clear bit and puts
// the hand on it, undoing the Evict that returned it.
func (c *Clock) Reinstate(id int) {
	if !c.valid(id) {
		return
	}
	s := &c.slots[id]
	if !s.evictable || !s.present {
		c.size++
	}
	*s = slot{present: true, evictable: true}
	c.hand = id
}

// Remove stops tracking id.
func (c *Clock) Remove(id int) {
	if !c.valid(id) || !c.slots[id].present {
		return
	}
	if c.slots[id].evictable {
		c.size--
	}
	c.slots[id] = slot{}
}

func (c *Clock) Size() int { return c.size }
