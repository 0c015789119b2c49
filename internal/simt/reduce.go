package simt

// Cross-lane primitives within one SIMD cluster, and the two-level
// (cluster, then group) reductions built on top of them. The two-level
// pattern is the one reduction primitive shared by the softmax
// tile-sum, the block prefix-sum and the element prefix-sum; kernels
// reuse it instead of hand-rolling their own.
//
// Every primitive is a uniform operation: all lanes (or all workers)
// must call it together, and all receive the same result.

// SimdSum returns the sum of v across the worker's SIMD cluster.
func (t *Thread) SimdSum(v float32) float32 {
	scr := t.g.simdF[t.simd]
	scr[t.lane] = v
	t.simdSync()
	var sum float32
	for _, x := range scr {
		sum += x
	}
	t.simdSync()
	return sum
}

// SimdPrefixInclusiveSum returns the inclusive prefix sum of v across
// the worker's SIMD cluster: lanes 0..Lane() contribute.
func (t *Thread) SimdPrefixInclusiveSum(v float32) float32 {
	scr := t.g.simdF[t.simd]
	scr[t.lane] = v
	t.simdSync()
	var sum float32
	for i := 0; i <= t.lane; i++ {
		sum += scr[i]
	}
	t.simdSync()
	return sum
}

// SimdMinUint32 returns the minimum of v across the worker's SIMD
// cluster.
func (t *Thread) SimdMinUint32(v uint32) uint32 {
	scr := t.g.simdU[t.simd]
	scr[t.lane] = v
	t.simdSync()
	min := scr[0]
	for _, x := range scr[1:] {
		if x < min {
			min = x
		}
	}
	t.simdSync()
	return min
}

// SimdMaxUint64 returns the maximum of v across the worker's SIMD
// cluster. Used for packed argmax words.
func (t *Thread) SimdMaxUint64(v uint64) uint64 {
	scr := t.g.simdW[t.simd]
	scr[t.lane] = v
	t.simdSync()
	max := scr[0]
	for _, x := range scr[1:] {
		if x > max {
			max = x
		}
	}
	t.simdSync()
	return max
}

// GroupSum reduces v across the whole threadgroup: SIMD-width
// reduction first, then one representative lane per cluster publishes
// to the shared slot row, and every worker folds the slots in index
// order. All workers receive the identical total.
func (t *Thread) GroupSum(v float32) float32 {
	partial := t.SimdSum(v)
	if t.lane == 0 {
		t.g.sharedF[t.simd] = partial
	}
	t.Barrier()
	var total float32
	for s := 0; s < t.g.numSimd; s++ {
		total += t.g.sharedF[s]
	}
	t.Barrier()
	return total
}

// GroupPrefixInclusiveSum computes the inclusive prefix sum of v in
// thread-index order across the whole threadgroup, returning the
// worker's inclusive prefix and the grand total (identical on all
// workers).
func (t *Thread) GroupPrefixInclusiveSum(v float32) (incl, total float32) {
	incl = t.SimdPrefixInclusiveSum(v)

	// The last live lane of each cluster holds the cluster total.
	if t.lane == t.g.laneCount(t.simd)-1 {
		t.g.sharedF[t.simd] = incl
	}
	t.Barrier()
	var before float32
	for s := 0; s < t.simd; s++ {
		before += t.g.sharedF[s]
	}
	total = before
	for s := t.simd; s < t.g.numSimd; s++ {
		total += t.g.sharedF[s]
	}
	t.Barrier()
	return incl + before, total
}

// GroupMinUint32 reduces v to the group-wide minimum; all workers
// receive the identical result.
func (t *Thread) GroupMinUint32(v uint32) uint32 {
	partial := t.SimdMinUint32(v)
	if t.lane == 0 {
		t.g.sharedU[t.simd] = partial
	}
	t.Barrier()
	min := t.g.sharedU[0]
	for s := 1; s < t.g.numSimd; s++ {
		if t.g.sharedU[s] < min {
			min = t.g.sharedU[s]
		}
	}
	t.Barrier()
	return min
}

// GroupMaxUint64 reduces v to the group-wide maximum; all workers
// receive the identical result.
func (t *Thread) GroupMaxUint64(v uint64) uint64 {
	partial := t.SimdMaxUint64(v)
	if t.lane == 0 {
		t.g.sharedW[t.simd] = partial
	}
	t.Barrier()
	max := t.g.sharedW[0]
	for s := 1; s < t.g.numSimd; s++ {
		if t.g.sharedW[s] > max {
			max = t.g.sharedW[s]
		}
	}
	t.Barrier()
	return max
}
