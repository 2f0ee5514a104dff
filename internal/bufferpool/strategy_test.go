package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"fifo":  FIFO,
		"LRU":   LRU,
		" lfu ": LFU,
		"Clock": Clock,
		"lru-k": LRUK,
		"LRU_K": LRUK,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("mru")
	require.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestStrategy_StringRoundTrip(t *testing.T) {
	for _, s := range append(Strategies(), LRUK) {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "unknown", Strategy(99).String())
}

func TestNewReplacer_LRUKRejected(t *testing.T) {
	_, err := newReplacer(LRUK, 4)
	require.ErrorIs(t, err, ErrStrategyNotImplemented)
}
