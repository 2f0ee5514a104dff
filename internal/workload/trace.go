package workload

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrInvalidConfig = errors.New("workload: invalid config")

// zipfS is the skew of the generated trace; a handful of pages take most
// accesses.
const zipfS = 1.2

type Config struct {
	Workers    int
	Ops        int
	Pages      int
	Seed       int64
	WriteRatio float64
}

func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Ops < 0:
		return fmt.Errorf("%w: ops must not be negative", ErrInvalidConfig)
	case c.Pages <= 0:
		return fmt.Errorf("%w: pages must be positive", ErrInvalidConfig)
	case c.WriteRatio < 0 || c.WriteRatio > 1:
		return fmt.Errorf("%w: write ratio must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Access is one step of a trace.
type Access struct {
	Page  int
	Write bool
}

// Trace returns a reproducible Zipf-skewed access sequence over
// [0, cfg.Pages). The same config always yields the same trace.
func Trace(cfg Config) ([]Access, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(uint64(cfg.Seed), 0x6e6f7661))

	out := make([]Access, cfg.Ops)
	if cfg.Pages == 1 {
		for i := range out {
			out[i] = Access{Page: 0, Write: r.Float64() < cfg.WriteRatio}
		}
		return out, nil
	}

	z := rand.NewZipf(r, zipfS, 1, uint64(cfg.Pages-1))
	for i := range out {
		out[i] = Access{
			Page:  int(z.Uint64()),
			Write: r.Float64() < cfg.WriteRatio,
		}
	}
	return out, nil
}

// Split routes each access to worker page%workers so a page is only ever
// touched by one worker, in trace order.
func Split(trace []Access, workers int) [][]Access {
	parts := make([][]Access, workers)
	for _, a := range trace {
		w := a.Page % workers
		parts[w] = append(parts[w], a)
	}
	return parts
}
