package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/monitoring"
	"github.com/23skdu/longbow-bodkin/internal/sampler"
	"github.com/23skdu/longbow-bodkin/internal/trace"
)

var (
	vocab       = flag.Int("vocab", 32768, "Vocabulary size (logits row length)")
	steps       = flag.Int("n", 256, "Number of decode steps to sample")
	temperature = flag.Float64("temp", 1.0, "Sampling temperature (0 = greedy)")
	seed        = flag.Uint64("seed", 0, "RNG seed (0 = time-derived)")
	tgSize      = flag.Int("tg", 128, "Threadgroup size")
	simdWidth   = flag.Int("simd", 32, "SIMD cluster width")
	maxTG       = flag.Int("max-tg", 128, "Maximum threadgroups per dispatch")
	concurrency = flag.Int("concurrency", 0, "Concurrent threadgroups (0 = one per CPU)")
	listenAddr  = flag.String("listen", "", "Serve health/metrics on this address")
	tracePath   = flag.String("trace", "", "Write Arrow IPC sampling trace to this file")
	flightAddr  = flag.String("flight", "", "Push the sampling trace to this Arrow Flight endpoint")
	logLevel    = flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFormat   = flag.String("log-format", "console", "Log format (console, json)")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	cfg := config.Default()
	cfg.VocabSize = *vocab
	cfg.Temperature = float32(*temperature)
	cfg.ThreadgroupSize = *tgSize
	cfg.SimdWidth = *simdWidth
	cfg.MaxThreadgroups = *maxTG
	cfg.MaxConcurrentThreadgroups = *concurrency
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	s, err := sampler.New(cfg, *seed)
	if err != nil {
		logger.Log.Fatal("sampler init failed", "error", err)
	}

	mon := monitoring.NewMonitor()
	if *listenAddr != "" {
		go func() {
			if err := mon.Start(*listenAddr); err != nil {
				logger.Log.Error("monitor stopped", "error", err)
			}
		}()
		defer mon.Stop(context.Background())
	}

	var rec *trace.Recorder
	if *tracePath != "" || *flightAddr != "" {
		rec = trace.NewRecorder()
		defer rec.Release()
	}

	logger.Log.Info("benchmark starting",
		"vocab", *vocab, "steps", *steps, "temperature", *temperature, "seed", *seed)

	r := rand.New(rand.NewSource(int64(*seed)))
	logits := make([]float32, *vocab)

	start := time.Now()
	for step := 0; step < *steps; step++ {
		for i := range logits {
			logits[i] = (r.Float32() - 0.5) * 16
		}

		stepStart := time.Now()
		token, err := s.Sample(context.Background(), logits, cfg.Temperature)
		if err != nil {
			mon.RecordAbort()
			logger.Log.Fatal("decode step failed", "step", step, "error", err)
		}
		elapsed := time.Since(stepStart)
		mon.RecordStep(1, elapsed)

		if rec != nil {
			var sum float32
			for _, v := range s.Probabilities() {
				sum += v
			}
			rec.Record(trace.Step{
				Step:        uint64(step),
				Token:       token,
				Temperature: cfg.Temperature,
				ProbSum:     sum,
				LatencyUS:   elapsed.Microseconds(),
				RNGOffset:   s.Offset(),
			})
		}
	}
	total := time.Since(start)

	if rec != nil && *flightAddr != "" {
		batch := rec.Snapshot()
		pusher, err := trace.NewFlightPusher(*flightAddr, "sampling_trace")
		if err != nil {
			logger.Log.Error("flight connect failed", "error", err)
		} else {
			if err := pusher.Push(context.Background(), batch); err != nil {
				logger.Log.Error("flight push failed", "error", err)
			} else {
				logger.Log.Info("trace pushed", "addr", *flightAddr, "rows", batch.NumRows())
			}
			pusher.Close()
		}
		if *tracePath != "" {
			f, err := os.Create(*tracePath)
			if err == nil {
				if err := trace.WriteRecordIPC(f, batch); err != nil {
					logger.Log.Error("trace write failed", "error", err)
				}
				f.Close()
			}
		}
		batch.Release()
	} else if rec != nil {
		if err := rec.WriteFile(*tracePath); err != nil {
			logger.Log.Error("trace write failed", "error", err)
		} else {
			logger.Log.Info("trace written", "path", *tracePath)
		}
	}

	tps := float64(*steps) / total.Seconds()
	fmt.Printf("Sampled %d tokens in %v (%.2f t/s)\n", *steps, total.Round(time.Millisecond), tps)
	fmt.Printf("Mean step latency: %v\n", (total / time.Duration(*steps)).Round(time.Microsecond))
}
