package kernels

import (
	"github.com/23skdu/longbow-bodkin/internal/rng"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// noCandidate marks a worker with no qualifying index; it loses every
// min-reduction against a real index.
const noCandidate = ^uint32(0)

// SampleCategorical draws one index distributed proportionally to the
// unnormalized probability vector and writes it exactly once. It runs
// as a single threadgroup.
//
// The draw is resolved with the same prefix-sum pattern at two levels:
// first over the per-block sums to pick a block, then over the
// elements of that block to pick the index. Both phases take the
// smallest index whose inclusive prefix reaches the scaled draw; the
// last block and the block's last element are the rounding fallbacks,
// so every non-aborted invocation produces an in-range index.
//
// The element phase advances in full-group strides with no per-worker
// early exit: the loop condition is derived from a group-wide
// reduction, so every worker observes the same decision and reaches
// the same barriers.
func SampleCategorical(t *simt.Thread, args SampleArgs, prob []float32, sums []float32, prediction *uint32) {
	if args.NumDims == 0 {
		return
	}

	// Phase 1: inclusive prefix over per-block sums, one worker per
	// slot. Workers past NumBlocks contribute zero mass.
	var blockSum float32
	if t.Index() < int(args.NumBlocks) {
		blockSum = sums[t.Index()]
	}
	incl, total := t.GroupPrefixInclusiveSum(blockSum)

	// One counter-based draw for the whole invocation, scaled by the
	// grand total. The scaled draw is floored at the smallest positive
	// normal float: a zero-sum vector then resolves through the
	// fallbacks instead of a degenerate zero draw, and zero-mass
	// prefixes can never qualify.
	scaled := rng.Uniform(rng.Squares32(args.Offset, args.Seed)) * total
	if scaled < minPositiveNormal {
		scaled = minPositiveNormal
	}

	candidate := noCandidate
	if t.Index() < int(args.NumBlocks) && incl >= scaled {
		candidate = uint32(t.Index())
	}
	block := t.GroupMinUint32(candidate)
	if block == noCandidate {
		block = args.NumBlocks - 1
	}

	// Mass preceding the selected block, replicated to every worker.
	var beforeSum float32
	if t.Index() < int(block) {
		beforeSum = blockSum
	}
	carry := t.GroupSum(beforeSum)

	// Phase 2: stride the selected block at group width, reusing the
	// identical prefix-sum pattern per stride.
	start := int(block) * int(args.NumDimsPerBlock)
	end := start + int(args.NumDimsPerBlock)
	if end > int(args.NumDims) {
		end = int(args.NumDims)
	}

	selected := noCandidate
	for base := start; base < end; base += t.GroupSize() {
		i := base + t.Index()
		var p float32
		if i < end {
			p = prob[i]
		}
		elemIncl, strideTotal := t.GroupPrefixInclusiveSum(p)

		cand := noCandidate
		if i < end && carry+elemIncl >= scaled {
			cand = uint32(i)
		}
		if found := t.GroupMinUint32(cand); found != noCandidate {
			selected = found
			break
		}
		carry += strideTotal
	}
	if selected == noCandidate {
		// Rounding pushed the draw past every prefix; the block's
		// last element absorbs it.
		selected = uint32(end - 1)
	}

	if t.Index() == 0 {
		*prediction = selected
	}
}
