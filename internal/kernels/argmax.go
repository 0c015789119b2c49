package kernels

import (
	"math"
	"sync/atomic"

	"github.com/23skdu/longbow-bodkin/internal/floatbits"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// ArgmaxIdentity is the neutral packed word: negative infinity with
// the highest possible index, losing against any real element. The
// caller seeds the result slot with it before dispatching the grid.
var ArgmaxIdentity = uint64(floatbits.ToOrdered(float32(math.Inf(-1)))) << 32

// Argmax folds one tile of scores into a packed (ordered bits, ^index)
// word and merges it into the shared row result with an atomic max.
// The packing makes plain unsigned max order by value first and by
// lowest index on ties; multiple tiles can therefore combine through
// the same slot without coordination.
func Argmax(t *simt.Thread, gid int, args ArgmaxArgs, score []float32, result *uint64) {
	base, count := tileBounds(gid, args.NumVecs, args.NumVecsPerThreadgroup)

	local := ArgmaxIdentity
	for i := t.Index(); i < count; i += t.GroupSize() {
		packed := floatbits.PackArgmax(floatbits.ToOrdered(score[base+i]), uint32(base+i))
		if packed > local {
			local = packed
		}
	}

	tileMax := t.GroupMaxUint64(local)
	if t.Index() == 0 {
		atomicMaxUint64(result, tileMax)
	}
}

func atomicMaxUint64(addr *uint64, v uint64) {
	for {
		old := atomic.LoadUint64(addr)
		if v <= old || atomic.CompareAndSwapUint64(addr, old, v) {
			return
		}
	}
}
