package bufferpool

import "fmt"

// Stats are running counters of one pool since NewPool.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64 // dirty victims written during eviction
	ReadIO     uint64
	WriteIO    uint64
}

func (s Stats) Requests() uint64 { return s.Hits + s.Misses }

// HitRatio is Hits over all successful pins, 0 before the first pin.
func (s Stats) HitRatio() float64 {
	if s.Requests() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests())
}

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d evictions=%d writebacks=%d read_io=%d write_io=%d",
		s.Hits, s.Misses, s.Evictions, s.WriteBacks, s.ReadIO, s.WriteIO)
}
