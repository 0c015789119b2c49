// kernel_check runs the sampling kernels against float64 scalar
// references and reports the worst deviations. Useful after touching
// the reduction or prefix-sum paths.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/floatbits"
)

var (
	vocab     = flag.Int("vocab", 4096, "Vocabulary size")
	tgSize    = flag.Int("tg", 128, "Threadgroup size")
	simdWidth = flag.Int("simd", 32, "SIMD cluster width")
	maxTG     = flag.Int("max-tg", 64, "Maximum threadgroups per dispatch")
	seed      = flag.Int64("seed", 1, "Logit generator seed")
	draws     = flag.Int("draws", 200, "Categorical draws to validate")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	cfg.VocabSize = *vocab
	cfg.ThreadgroupSize = *tgSize
	cfg.SimdWidth = *simdWidth
	cfg.MaxThreadgroups = *maxTG
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	dev, err := device.NewContext(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "device init: %v\n", err)
		os.Exit(1)
	}

	r := rand.New(rand.NewSource(*seed))
	score := make([]float32, *vocab)
	for i := range score {
		score[i] = (r.Float32() - 0.5) * 20
	}

	failed := false

	// Argmax against a scalar scan.
	var packed uint64
	if err := dev.Argmax(context.Background(), score, &packed, nil); err != nil {
		fmt.Fprintf(os.Stderr, "argmax dispatch: %v\n", err)
		os.Exit(1)
	}
	wantIdx := 0
	for i, v := range score {
		if v > score[wantIdx] {
			wantIdx = i
		}
	}
	gotIdx := floatbits.ArgmaxIndex(packed)
	if gotIdx != uint32(wantIdx) {
		fmt.Printf("FAIL argmax: index %d, want %d\n", gotIdx, wantIdx)
		failed = true
	} else {
		fmt.Printf("PASS argmax: index %d value %v\n", gotIdx, floatbits.ArgmaxValue(packed))
	}

	// Softmax against float64 exp.
	_, numGroups := dev.TileGeometry(*vocab)
	prob := make([]float32, *vocab)
	sums := make([]float32, numGroups)
	if err := dev.SoftmaxReduce(context.Background(), score, floatbits.ArgmaxBits(packed), 1.0, prob, sums, nil); err != nil {
		fmt.Fprintf(os.Stderr, "softmax dispatch: %v\n", err)
		os.Exit(1)
	}

	maxVal := float64(score[wantIdx])
	worst := 0.0
	for i := range score {
		want := math.Exp(float64(score[i]) - maxVal)
		if d := math.Abs(float64(prob[i]) - want); d > worst {
			worst = d
		}
	}
	if worst > 1e-5 {
		fmt.Printf("FAIL softmax: worst abs error %.3g\n", worst)
		failed = true
	} else {
		fmt.Printf("PASS softmax: worst abs error %.3g over %d dims\n", worst, *vocab)
	}

	// Categorical draws stay in range and hit the peaked index.
	args := dev.SampleArgsFor(*vocab, uint64(*seed), 0)
	var prediction uint32
	for offset := 0; offset < *draws; offset++ {
		args.Offset = uint64(offset)
		if err := dev.SampleCategorical(context.Background(), args, prob, sums, &prediction, nil); err != nil {
			fmt.Fprintf(os.Stderr, "sample dispatch: %v\n", err)
			os.Exit(1)
		}
		if int(prediction) >= *vocab {
			fmt.Printf("FAIL sample: offset %d produced out-of-range index %d\n", offset, prediction)
			failed = true
			break
		}
	}
	if !failed {
		fmt.Printf("PASS sample: %d draws in range\n", *draws)
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("All kernel checks passed")
}
