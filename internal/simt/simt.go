// Package simt emulates the lock-step execution model the sampling
// kernels were written for: a threadgroup of workers that advance
// through barrier-separated phases in program order, partitioned into
// fixed-width SIMD clusters with deterministic cross-lane primitives.
//
// Each worker is a goroutine; a Group ties them to a reusable barrier
// and per-cluster scratch rows. All cross-lane and cross-group
// reductions read scratch in a fixed order, so results are bit-exact
// across runs regardless of goroutine scheduling.
package simt

import "sync"

// Group is one threadgroup: size workers in clusters of simdWidth
// lanes (the last cluster may be short). A Group is reusable across
// launches but runs one kernel at a time.
type Group struct {
	size      int
	simdWidth int
	numSimd   int

	bar     *barrier
	simdBar []*barrier

	// Per-cluster lane scratch for SIMD-width primitives.
	simdF [][]float32
	simdU [][]uint32
	simdW [][]uint64

	// One slot per cluster for the second reduction level.
	sharedF []float32
	sharedU []uint32
	sharedW []uint64
}

// NewGroup creates a threadgroup of the given size and SIMD width.
// Panics on non-positive size or width; a width larger than the group
// is clamped so a single-worker group degenerates cleanly.
func NewGroup(size, simdWidth int) *Group {
	if size <= 0 {
		panic("simt: group size must be positive")
	}
	if simdWidth <= 0 {
		panic("simt: simd width must be positive")
	}
	if simdWidth > size {
		simdWidth = size
	}

	numSimd := (size + simdWidth - 1) / simdWidth
	g := &Group{
		size:      size,
		simdWidth: simdWidth,
		numSimd:   numSimd,
		bar:       newBarrier(size),
		simdBar:   make([]*barrier, numSimd),
		simdF:     make([][]float32, numSimd),
		simdU:     make([][]uint32, numSimd),
		simdW:     make([][]uint64, numSimd),
		sharedF:   make([]float32, numSimd),
		sharedU:   make([]uint32, numSimd),
		sharedW:   make([]uint64, numSimd),
	}
	for s := 0; s < numSimd; s++ {
		lanes := g.laneCount(s)
		g.simdBar[s] = newBarrier(lanes)
		g.simdF[s] = make([]float32, lanes)
		g.simdU[s] = make([]uint32, lanes)
		g.simdW[s] = make([]uint64, lanes)
	}
	return g
}

// Size returns the number of workers in the group.
func (g *Group) Size() int { return g.size }

// SimdWidth returns the cluster width after clamping.
func (g *Group) SimdWidth() int { return g.simdWidth }

func (g *Group) laneCount(simd int) int {
	lanes := g.size - simd*g.simdWidth
	if lanes > g.simdWidth {
		lanes = g.simdWidth
	}
	return lanes
}

// Launch runs body on every worker of the group and blocks until all
// return. The control flag is polled exactly once, before any worker
// starts, mirroring the kernels' entry-only abort check: a set flag
// means no worker runs and Launch reports false. The snapshot keeps
// abort uniform across workers; a divergent exit would deadlock the
// barrier.
func (g *Group) Launch(ctl *Control, body func(t *Thread)) bool {
	if ctl != nil && ctl.Aborted() {
		return false
	}

	var wg sync.WaitGroup
	wg.Add(g.size)
	for i := 0; i < g.size; i++ {
		t := &Thread{
			g:     g,
			index: i,
			simd:  i / g.simdWidth,
			lane:  i % g.simdWidth,
		}
		go func() {
			defer wg.Done()
			body(t)
		}()
	}
	wg.Wait()
	return true
}

// Thread is one worker's view of its group.
type Thread struct {
	g     *Group
	index int
	simd  int
	lane  int
}

// Index returns the worker's position within the threadgroup.
func (t *Thread) Index() int { return t.index }

// Lane returns the worker's position within its SIMD cluster.
func (t *Thread) Lane() int { return t.lane }

// SimdGroup returns the index of the worker's SIMD cluster.
func (t *Thread) SimdGroup() int { return t.simd }

// GroupSize returns the threadgroup size.
func (t *Thread) GroupSize() int { return t.g.size }

// Barrier synchronizes all workers of the threadgroup. Every worker
// must reach it; uniform control flow is the caller's contract.
func (t *Thread) Barrier() { t.g.bar.wait() }

func (t *Thread) simdSync() { t.g.simdBar[t.simd].wait() }
