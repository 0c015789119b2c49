// Package device dispatches the sampling kernels onto the simt
// runtime: it derives launch geometry from the configuration, fans
// tiles out across a bounded set of threadgroups, and times every
// launch. The softmax and sample kernels are separate dispatches on
// the same goroutine, so the softmax writes are fully visible before
// the sample kernel reads them.
package device

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/kernels"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// ErrAborted reports that a dispatch observed the control flag. The
// kernels themselves return silently; the dispatch layer translates
// that for callers, which must not read the output buffers.
var ErrAborted = errors.New("device: dispatch cancelled by control flag")

// Context owns the launch geometry and the reusable threadgroups.
type Context struct {
	threadgroupSize int
	simdWidth       int
	maxThreadgroups int
	maxConcurrent   int

	tiles  []*simt.Group
	sample *simt.Group
}

// NewContext builds a dispatch context from the configuration.
func NewContext(cfg config.Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}

	concurrent := cfg.MaxConcurrentThreadgroups
	if concurrent == 0 {
		concurrent = runtime.NumCPU()
	}
	if concurrent > cfg.MaxThreadgroups {
		concurrent = cfg.MaxThreadgroups
	}

	c := &Context{
		threadgroupSize: cfg.ThreadgroupSize,
		simdWidth:       cfg.SimdWidth,
		maxThreadgroups: cfg.MaxThreadgroups,
		maxConcurrent:   concurrent,
		tiles:           make([]*simt.Group, concurrent),
		sample:          simt.NewGroup(cfg.ThreadgroupSize, cfg.SimdWidth),
	}
	for i := range c.tiles {
		c.tiles[i] = simt.NewGroup(cfg.ThreadgroupSize, cfg.SimdWidth)
	}
	return c, nil
}

// ThreadgroupSize returns the workers per threadgroup.
func (c *Context) ThreadgroupSize() int { return c.threadgroupSize }

// TileGeometry splits numVecs elements into tiles: elements per
// threadgroup (rounded up to the SIMD width) and the tile count. The
// tile count never exceeds MaxThreadgroups, so the sample kernel can
// resolve one partial sum per worker.
func (c *Context) TileGeometry(numVecs int) (vecsPerGroup, numGroups int) {
	if numVecs <= 0 {
		return 0, 0
	}
	vecsPerGroup = (numVecs + c.maxThreadgroups - 1) / c.maxThreadgroups
	vecsPerGroup = (vecsPerGroup + c.simdWidth - 1) / c.simdWidth * c.simdWidth
	numGroups = (numVecs + vecsPerGroup - 1) / vecsPerGroup
	return vecsPerGroup, numGroups
}

// SampleArgsFor derives the block partition for the sample kernel from
// the same tiling the softmax dispatch used, so sums[i] is exactly
// block i's mass.
func (c *Context) SampleArgsFor(numDims int, seed, offset uint64) kernels.SampleArgs {
	perGroup, numGroups := c.TileGeometry(numDims)
	return kernels.SampleArgs{
		Seed:            seed,
		Offset:          offset,
		NumBlocks:       uint32(numGroups),
		NumDimsPerBlock: uint32(perGroup),
		NumDims:         uint32(numDims),
	}
}

// Argmax reduces score to one packed (max bits, index) word.
func (c *Context) Argmax(ctx context.Context, score []float32, result *uint64, ctl *simt.Control) error {
	perGroup, numGroups := c.TileGeometry(len(score))
	args := kernels.ArgmaxArgs{
		NumVecs:               uint32(len(score)),
		NumVecsPerThreadgroup: uint32(perGroup),
	}

	*result = kernels.ArgmaxIdentity
	start := time.Now()
	err := c.dispatchGrid(ctx, numGroups, ctl, func(g *simt.Group, gid int) bool {
		return g.Launch(ctl, func(t *simt.Thread) {
			kernels.Argmax(t, gid, args, score, result)
		})
	})
	metrics.RecordKernelDuration("f32_argmax", time.Since(start))
	return err
}

// SoftmaxReduce fills prob with unnormalized probabilities and sums
// with one partial sum per tile. sums must have room for the tile
// count of len(score).
func (c *Context) SoftmaxReduce(ctx context.Context, score []float32, maxBits uint32, temperature float32, prob []float32, sums []float32, ctl *simt.Control) error {
	perGroup, numGroups := c.TileGeometry(len(score))
	if len(prob) < len(score) {
		return fmt.Errorf("device: prob buffer too small: %d < %d", len(prob), len(score))
	}
	if len(sums) < numGroups {
		return fmt.Errorf("device: sums buffer too small: %d < %d", len(sums), numGroups)
	}
	args := kernels.SoftmaxArgs{
		NumVecs:               uint32(len(score)),
		NumVecsPerThreadgroup: uint32(perGroup),
		Temperature:           temperature,
	}

	start := time.Now()
	err := c.dispatchGrid(ctx, numGroups, ctl, func(g *simt.Group, gid int) bool {
		return g.Launch(ctl, func(t *simt.Thread) {
			kernels.SoftmaxReduce(t, gid, args, score, maxBits, prob, sums)
		})
	})
	metrics.RecordKernelDuration("f32_softmax", time.Since(start))
	return err
}

// SampleCategorical resolves one draw against the probability vector.
// A single threadgroup handles both search phases.
func (c *Context) SampleCategorical(ctx context.Context, args kernels.SampleArgs, prob []float32, sums []float32, prediction *uint32, ctl *simt.Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if int(args.NumBlocks) > c.threadgroupSize {
		return fmt.Errorf("device: %d blocks exceed threadgroup size %d", args.NumBlocks, c.threadgroupSize)
	}

	start := time.Now()
	ok := c.sample.Launch(ctl, func(t *simt.Thread) {
		kernels.SampleCategorical(t, args, prob, sums, prediction)
	})
	metrics.RecordKernelDuration("f32_sample", time.Since(start))
	if !ok {
		return ErrAborted
	}
	return nil
}

// dispatchGrid fans numGroups tiles across the bounded worker set.
// Tiles are strided so each worker reuses one threadgroup, keeping
// barrier allocations off the dispatch path.
func (c *Context) dispatchGrid(ctx context.Context, numGroups int, ctl *simt.Control, launch func(g *simt.Group, gid int) bool) error {
	if numGroups == 0 {
		return nil
	}
	metrics.ThreadgroupsPerDispatch.Observe(float64(numGroups))

	workers := c.maxConcurrent
	if workers > numGroups {
		workers = numGroups
	}

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g := c.tiles[w]
		first := w
		eg.Go(func() error {
			for gid := first; gid < numGroups; gid += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !launch(g, gid) {
					return ErrAborted
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
