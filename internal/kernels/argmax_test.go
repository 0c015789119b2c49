package kernels

import (
	"math/rand"
	"testing"

	"github.com/23skdu/longbow-bodkin/internal/floatbits"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

func runArgmax(t *testing.T, groupSize, simdWidth int, args ArgmaxArgs, score []float32) uint64 {
	t.Helper()
	numGroups := int((args.NumVecs + args.NumVecsPerThreadgroup - 1) / args.NumVecsPerThreadgroup)
	result := ArgmaxIdentity
	g := simt.NewGroup(groupSize, simdWidth)
	for gid := 0; gid < numGroups; gid++ {
		g.Launch(nil, func(th *simt.Thread) {
			Argmax(th, gid, args, score, &result)
		})
	}
	return result
}

func TestArgmaxMatchesScalar(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		n := 1 + r.Intn(900)
		score := make([]float32, n)
		for i := range score {
			score[i] = (r.Float32() - 0.5) * 100
		}

		wantIdx := 0
		for i, v := range score {
			if v > score[wantIdx] {
				wantIdx = i
			}
		}

		args := ArgmaxArgs{NumVecs: uint32(n), NumVecsPerThreadgroup: 128}
		packed := runArgmax(t, 64, 32, args, score)

		if got := floatbits.ArgmaxIndex(packed); got != uint32(wantIdx) {
			t.Fatalf("trial %d: index %d, want %d", trial, got, wantIdx)
		}
		if got := floatbits.ArgmaxValue(packed); got != score[wantIdx] {
			t.Fatalf("trial %d: value %v, want %v", trial, got, score[wantIdx])
		}
	}
}

func TestArgmaxTieBreakLowestIndex(t *testing.T) {
	score := make([]float32, 300)
	for i := range score {
		score[i] = -1
	}
	score[120] = 7.5
	score[240] = 7.5 // same value in a later tile

	args := ArgmaxArgs{NumVecs: 300, NumVecsPerThreadgroup: 128}
	packed := runArgmax(t, 32, 32, args, score)
	if got := floatbits.ArgmaxIndex(packed); got != 120 {
		t.Errorf("index = %d, want lowest tied index 120", got)
	}
}

func TestArgmaxAllNegative(t *testing.T) {
	score := []float32{-10, -3.5, -8}
	args := ArgmaxArgs{NumVecs: 3, NumVecsPerThreadgroup: 32}
	packed := runArgmax(t, 32, 32, args, score)
	if got := floatbits.ArgmaxIndex(packed); got != 1 {
		t.Errorf("index = %d, want 1", got)
	}
	if got := floatbits.ArgmaxValue(packed); got != -3.5 {
		t.Errorf("value = %v, want -3.5", got)
	}
}
