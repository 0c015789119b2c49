package kernels

import (
	"math"
	"math/rand"
	"testing"

	"github.com/23skdu/longbow-bodkin/internal/floatbits"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// runSoftmax executes the softmax grid tile by tile on one reusable
// threadgroup, the way the dispatch layer does for a serial worker.
func runSoftmax(t *testing.T, groupSize, simdWidth int, args SoftmaxArgs, score []float32, maxBits uint32) (prob, sums []float32) {
	t.Helper()
	numGroups := int((args.NumVecs + args.NumVecsPerThreadgroup - 1) / args.NumVecsPerThreadgroup)
	prob = make([]float32, len(score))
	sums = make([]float32, numGroups)

	g := simt.NewGroup(groupSize, simdWidth)
	for gid := 0; gid < numGroups; gid++ {
		g.Launch(nil, func(th *simt.Thread) {
			SoftmaxReduce(th, gid, args, score, maxBits, prob, sums)
		})
	}
	return prob, sums
}

func TestSoftmaxEndToEnd(t *testing.T) {
	// Scores [1,2,3] with max 3 and temperature 1 must produce the
	// unnormalized probabilities [e^-2, e^-1, 1].
	score := []float32{1.0, 2.0, 3.0}
	args := SoftmaxArgs{NumVecs: 3, NumVecsPerThreadgroup: 32, Temperature: 1.0}

	prob, sums := runSoftmax(t, 32, 32, args, score, floatbits.ToOrdered(3.0))

	want := []float64{math.Exp(-2), math.Exp(-1), 1.0}
	for i, w := range want {
		if math.Abs(float64(prob[i])-w) > 1e-6 {
			t.Errorf("prob[%d] = %v, want %v", i, prob[i], w)
		}
	}
	wantSum := want[0] + want[1] + want[2]
	if math.Abs(float64(sums[0])-wantSum) > 1e-6 {
		t.Errorf("sums[0] = %v, want %v", sums[0], wantSum)
	}
}

func TestSoftmaxFiniteNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for _, temp := range []float32{0, 0.25, 0.7, 1.0, 2.0} {
		score := make([]float32, 777)
		max := float32(math.Inf(-1))
		for i := range score {
			score[i] = (rng.Float32() - 0.5) * 200
			if score[i] > max {
				max = score[i]
			}
		}
		args := SoftmaxArgs{NumVecs: 777, NumVecsPerThreadgroup: 256, Temperature: temp}
		prob, sums := runSoftmax(t, 64, 32, args, score, floatbits.ToOrdered(max))

		for i, p := range prob {
			if p < 0 || math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
				t.Fatalf("temp=%v: prob[%d] = %v", temp, i, p)
			}
		}
		for g, s := range sums {
			if s < 0 || math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("temp=%v: sums[%d] = %v", temp, g, s)
			}
		}
	}
}

func TestSoftmaxMultiTileMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 1000
	score := make([]float32, n)
	max := float32(math.Inf(-1))
	for i := range score {
		score[i] = (rng.Float32() - 0.5) * 30
		if score[i] > max {
			max = score[i]
		}
	}

	const perTile = 256 // 4 tiles, last one short
	args := SoftmaxArgs{NumVecs: n, NumVecsPerThreadgroup: perTile, Temperature: 0.8}
	prob, sums := runSoftmax(t, 128, 32, args, score, floatbits.ToOrdered(max))

	for i := range score {
		want := math.Exp(float64(score[i]-max) * 0.8)
		if math.Abs(float64(prob[i])-want) > 1e-5*math.Max(want, 1) {
			t.Fatalf("prob[%d] = %v, want %v", i, prob[i], want)
		}
	}

	for g := range sums {
		lo := g * perTile
		hi := lo + perTile
		if hi > n {
			hi = n
		}
		var want float64
		for i := lo; i < hi; i++ {
			want += math.Exp(float64(score[i]-max) * 0.8)
		}
		if math.Abs(float64(sums[g])-want) > 1e-3 {
			t.Errorf("sums[%d] = %v, want %v", g, sums[g], want)
		}
	}
}

func TestSoftmaxSingleTileDegenerate(t *testing.T) {
	// A vector of one element in one tile: no reduction underflow,
	// probability exp(0) = 1.
	score := []float32{4.25}
	args := SoftmaxArgs{NumVecs: 1, NumVecsPerThreadgroup: 32, Temperature: 1.0}
	prob, sums := runSoftmax(t, 32, 32, args, score, floatbits.ToOrdered(4.25))

	if prob[0] != 1.0 {
		t.Errorf("prob[0] = %v, want 1", prob[0])
	}
	if sums[0] != 1.0 {
		t.Errorf("sums[0] = %v, want 1", sums[0])
	}
}

func TestSoftmaxZeroTemperatureFlattens(t *testing.T) {
	// Temperature scales the score delta before exponentiation, so
	// zero collapses every element to exp(0).
	score := []float32{-5, 0, 5}
	args := SoftmaxArgs{NumVecs: 3, NumVecsPerThreadgroup: 32, Temperature: 0}
	prob, _ := runSoftmax(t, 32, 32, args, score, floatbits.ToOrdered(5))
	for i, p := range prob {
		if p != 1.0 {
			t.Errorf("prob[%d] = %v, want 1", i, p)
		}
	}
}

func TestSoftmaxAbortedLaunchWritesNothing(t *testing.T) {
	score := []float32{1, 2, 3}
	prob := make([]float32, 3)
	sums := make([]float32, 1)
	args := SoftmaxArgs{NumVecs: 3, NumVecsPerThreadgroup: 32, Temperature: 1.0}

	ctl := &simt.Control{}
	ctl.Abort()
	g := simt.NewGroup(32, 32)
	if g.Launch(ctl, func(th *simt.Thread) {
		SoftmaxReduce(th, 0, args, score, floatbits.ToOrdered(3), prob, sums)
	}) {
		t.Fatal("launch should have been cancelled")
	}
	for i, p := range prob {
		if p != 0 {
			t.Errorf("prob[%d] = %v after abort, want 0", i, p)
		}
	}
	if sums[0] != 0 {
		t.Errorf("sums[0] = %v after abort, want 0", sums[0])
	}
}

func BenchmarkSoftmaxReduce(b *testing.B) {
	const n = 32768
	score := make([]float32, n)
	rng := rand.New(rand.NewSource(1))
	for i := range score {
		score[i] = rng.Float32() * 10
	}
	prob := make([]float32, n)
	sums := make([]float32, 128)
	args := SoftmaxArgs{NumVecs: n, NumVecsPerThreadgroup: 256, Temperature: 1.0}
	maxBits := floatbits.ToOrdered(10)
	g := simt.NewGroup(128, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for gid := 0; gid < 128; gid++ {
			g.Launch(nil, func(th *simt.Thread) {
				SoftmaxReduce(th, gid, args, score, maxBits, prob, sums)
			})
		}
	}
}
