// Package sampler drives one decode step end to end: argmax over the
// logits row, softmax-reduce into probabilities and partial sums, then
// the categorical-sample kernel. It owns the intermediate buffers, the
// shared abort flag and the (seed, offset) counter pair, advancing the
// offset once per draw so successive draws are independent.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/floatbits"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/rng"
	"github.com/23skdu/longbow-bodkin/internal/simt"
)

// Sampler samples one token per call from a row of raw logits.
type Sampler struct {
	dev *device.Context
	ctl *simt.Control

	seed   uint64
	offset uint64

	vocabSize int
	prob      []float32
	sums      []float32
}

// New builds a sampler for rows of cfg.VocabSize logits. The seed is
// fixed for the sampler's lifetime; reproducing a run means reusing
// the same seed and step order.
func New(cfg config.Config, seed uint64) (*Sampler, error) {
	dev, err := device.NewContext(cfg)
	if err != nil {
		return nil, err
	}

	_, numGroups := dev.TileGeometry(cfg.VocabSize)
	return &Sampler{
		dev:       dev,
		ctl:       &simt.Control{},
		seed:      seed,
		vocabSize: cfg.VocabSize,
		prob:      make([]float32, cfg.VocabSize),
		sums:      make([]float32, numGroups),
	}, nil
}

// Abort requests cooperative cancellation of in-flight and future
// steps until Reset.
func (s *Sampler) Abort() { s.ctl.Abort() }

// Reset clears the abort flag.
func (s *Sampler) Reset() { s.ctl.Reset() }

// Offset returns the current draw counter.
func (s *Sampler) Offset() uint64 { return s.offset }

// Probabilities exposes the unnormalized probability buffer of the
// last non-greedy step, for inspection and tracing. Valid until the
// next call to Sample.
func (s *Sampler) Probabilities() []float32 { return s.prob }

// Sample returns the sampled token index for one logits row.
// Temperature zero short-circuits to the argmax result. An aborted
// step returns device.ErrAborted; the output is then unspecified and
// the caller decides by inspecting the flag it set.
func (s *Sampler) Sample(ctx context.Context, logits []float32, temperature float32) (uint32, error) {
	if len(logits) != s.vocabSize {
		return 0, fmt.Errorf("sampler: logits length %d, want %d", len(logits), s.vocabSize)
	}

	start := time.Now()

	var packed uint64
	if err := s.dev.Argmax(ctx, logits, &packed, s.ctl); err != nil {
		return 0, s.stepErr(err)
	}

	if temperature == 0 {
		metrics.RecordSampleStep(time.Since(start), temperature)
		return floatbits.ArgmaxIndex(packed), nil
	}

	maxBits := floatbits.ArgmaxBits(packed)
	if err := s.dev.SoftmaxReduce(ctx, logits, maxBits, temperature, s.prob, s.sums, s.ctl); err != nil {
		return 0, s.stepErr(err)
	}

	var total float64
	for _, v := range s.sums {
		total += float64(v)
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		metrics.RecordInstability("prob_sums", "non_finite")
		logger.Log.Warn("non-finite probability total", "total", total, "offset", s.offset)
	}
	metrics.ProbabilitySum.Observe(total)

	args := s.dev.SampleArgsFor(s.vocabSize, s.seed, s.offset)
	s.offset++
	metrics.SampleDraw.Observe(float64(rng.Uniform(rng.Squares32(args.Offset, args.Seed))))

	var prediction uint32
	if err := s.dev.SampleCategorical(ctx, args, s.prob, s.sums, &prediction, s.ctl); err != nil {
		return 0, s.stepErr(err)
	}

	metrics.RecordSampleStep(time.Since(start), temperature)
	return prediction, nil
}

func (s *Sampler) stepErr(err error) error {
	if errors.Is(err, device.ErrAborted) {
		metrics.RecordAbortedStep()
	}
	return err
}
