package kernels

import (
	"math"

	"github.com/23skdu/longbow-bodkin/internal/floatbits"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// SoftmaxReduce converts one tile of raw scores into unnormalized
// probabilities and that tile's partial sum. maxBits is the
// order-preserving encoding of the row's running maximum; subtracting
// the decoded value keeps every exponent non-positive, so the outputs
// are always finite and non-negative.
//
//	prob[i] = exp((score[i] - max) * temperature)
//
// Each worker strides the tile at group width, accumulating a local
// sum; the tile-sum is folded with the two-level reduction and written
// once, by worker 0.
func SoftmaxReduce(t *simt.Thread, gid int, args SoftmaxArgs, score []float32, maxBits uint32, prob []float32, sums []float32) {
	maxVal := floatbits.FromOrdered(maxBits)
	base, count := tileBounds(gid, args.NumVecs, args.NumVecsPerThreadgroup)

	var local float32
	for i := t.Index(); i < count; i += t.GroupSize() {
		p := float32(math.Exp(float64((score[base+i] - maxVal) * args.Temperature)))
		prob[base+i] = p
		local += p
	}

	total := t.GroupSum(local)
	if t.Index() == 0 {
		sums[gid] = total
	}
}
