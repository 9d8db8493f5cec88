package lbvh

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkDivision describes a single shard of a larger sharded computation: Idx
// is this shard's index and Max is the total number of shards. The build's
// own kernels process the contiguous range shardBounds assigns to Idx;
// callers outside this package may instead stride their own per-frame work
// (e.g. scanlines) by Max starting at Idx.
type WorkDivision struct {
	Idx uint32
	Max uint32
}

// Scheduler dispatches a kernel across Max shards. Implementations must
// invoke kernel exactly once for every shard index in [0, max) and return
// only once every shard has completed.
type Scheduler interface {
	Run(max uint32, kernel func(WorkDivision) error) error
}

// DefaultScheduler runs shards concurrently on a fixed-size worker pool,
// defaulting to the number of logical CPUs.
type DefaultScheduler struct {
	// Workers is the number of goroutines used to service shards. Zero
	// means runtime.GOMAXPROCS(0).
	Workers int
}

// NewDefaultScheduler returns a DefaultScheduler sized to the host's
// available CPUs.
func NewDefaultScheduler() *DefaultScheduler {
	return &DefaultScheduler{Workers: runtime.GOMAXPROCS(0)}
}

// Run dispatches max shards onto the scheduler's worker pool, capping
// concurrency at s.Workers. If any shard returns an error, Run returns the
// first such error once every shard has finished; the other shards are not
// cancelled. A panic in a shard is not recovered.
func (s *DefaultScheduler) Run(max uint32, kernel func(WorkDivision) error) error {
	if max == 0 {
		return nil
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if uint32(workers) > max {
		workers = int(max)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for idx := uint32(0); idx < max; idx++ {
		idx := idx
		g.Go(func() error {
			return kernel(WorkDivision{Idx: idx, Max: max})
		})
	}
	return g.Wait()
}

// SingleThreadedScheduler runs every shard sequentially on the calling
// goroutine. It exists for deterministic tests and for callers that want to
// reproduce a build without spawning goroutines.
type SingleThreadedScheduler struct{}

// Run invokes kernel for every shard index in increasing order.
func (SingleThreadedScheduler) Run(max uint32, kernel func(WorkDivision) error) error {
	for idx := uint32(0); idx < max; idx++ {
		if err := kernel(WorkDivision{Idx: idx, Max: max}); err != nil {
			return err
		}
	}
	return nil
}

// shardBounds returns the contiguous [start, end) range of [0, n) owned by
// shard div when the domain is split into div.Max roughly equal shards.
func shardBounds(div WorkDivision, n int) (start, end int) {
	if div.Max == 0 {
		return 0, 0
	}
	chunk := (n + int(div.Max) - 1) / int(div.Max)
	start = int(div.Idx) * chunk
	end = start + chunk
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}
