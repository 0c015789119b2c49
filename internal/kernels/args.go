// Package kernels implements the sampling kernel pair (softmax-reduce
// and categorical-sample) plus the argmax kernel that feeds them. Each
// kernel body runs on every worker of a simt.Group; the caller owns the
// buffers, dispatches one group per tile, and guarantees the softmax
// outputs are visible before the sample kernel launches. Abort is
// handled at launch time by simt.Group.Launch; a cancelled kernel
// writes nothing.
package kernels

import "math"

// SoftmaxArgs parameterizes one softmax-reduce dispatch. The score
// vector of NumVecs elements is split into tiles of
// NumVecsPerThreadgroup (the last tile may be short); one threadgroup
// handles one tile.
type SoftmaxArgs struct {
	NumVecs               uint32
	NumVecsPerThreadgroup uint32
	Temperature           float32
}

// ArgmaxArgs parameterizes one argmax dispatch, tiled like SoftmaxArgs.
type ArgmaxArgs struct {
	NumVecs               uint32
	NumVecsPerThreadgroup uint32
}

// SampleArgs parameterizes one categorical-sample dispatch. The
// probability vector of NumDims elements is partitioned into NumBlocks
// contiguous blocks of NumDimsPerBlock (the last block may be short);
// sums[i] must hold the mass of block i. Seed and Offset select the
// pseudorandom draw; the caller advances Offset per draw so that draws
// are independent.
type SampleArgs struct {
	Seed            uint64
	Offset          uint64
	NumBlocks       uint32
	NumDimsPerBlock uint32
	NumDims         uint32
}

// minPositiveNormal is the floor applied to the scaled draw, so a zero
// draw cannot select an empty prefix and a zero-sum distribution
// resolves through the fallbacks.
var minPositiveNormal = math.Float32frombits(0x00800000)

// tileBounds clips tile gid against the vector length. count may be
// zero for a tile past the end; kernels then fall through their
// reductions with no contribution.
func tileBounds(gid int, numVecs, perGroup uint32) (base, count int) {
	base = gid * int(perGroup)
	count = int(numVecs) - base
	if count > int(perGroup) {
		count = int(perGroup)
	}
	if count < 0 {
		count = 0
	}
	return base, count
}
