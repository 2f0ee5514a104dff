package bufferpool

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy selects the replacement policy of a pool.
type Strategy int

const (
	FIFO Strategy = iota
	LRU
	Clock
	LFU
	LRUK
)

var (
	ErrUnknownStrategy        = errors.New("bufferpool: unknown replacement strategy")
	ErrStrategyNotImplemented = errors.New("bufferpool: replacement strategy not implemented")
)

func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "fifo"
	case LRU:
		return "lru"
	case Clock:
		return "clock"
	case LFU:
		return "lfu"
	case LRUK:
		return "lru-k"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return FIFO, nil
	case "lru":
		return LRU, nil
	case "clock":
		return Clock, nil
	case "lfu":
		return LFU, nil
	case "lru-k", "lru_k", "lruk":
		return LRUK, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Strategies lists the policies a pool can run with.
func Strategies() []Strategy {
	return []Strategy{FIFO, LRU, Clock, LFU}
}

func newReplacer(s Strategy, capacity int) (Replacer, error) {
	switch s {
	case FIFO:
		return newFIFOReplacer(capacity), nil
	case LRU:
		return newLRUReplacer(capacity), nil
	case Clock:
		return newClockAdapter(capacity), nil
	case LFU:
		return newLFUReplacer(capacity), nil
	case LRUK:
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotImplemented, s)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
}
