// Package trace records per-step sampling telemetry as Arrow record
// batches: one row per decode step with the sampled token, the
// unnormalized probability total, the draw counter and the step
// latency. Batches can be written as an Arrow IPC file or pushed to a
// Flight collector.
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Schema is the sampling-trace layout. One row per decode step.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "step", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "token", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "temperature", Type: arrow.PrimitiveTypes.Float32},
	{Name: "prob_sum", Type: arrow.PrimitiveTypes.Float32},
	{Name: "latency_us", Type: arrow.PrimitiveTypes.Int64},
	{Name: "rng_offset", Type: arrow.PrimitiveTypes.Uint64},
}, nil)

// Step is one decode step's telemetry.
type Step struct {
	Step        uint64
	Token       uint32
	Temperature float32
	ProbSum     float32
	LatencyUS   int64
	RNGOffset   uint64
}

// Recorder accumulates steps into an Arrow record builder.
type Recorder struct {
	mu      sync.Mutex
	builder *array.RecordBuilder
	rows    int
}

func NewRecorder() *Recorder {
	return &Recorder{
		builder: array.NewRecordBuilder(memory.DefaultAllocator, Schema),
	}
}

// Record appends one step.
func (r *Recorder) Record(s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builder.Field(0).(*array.Uint64Builder).Append(s.Step)
	r.builder.Field(1).(*array.Uint32Builder).Append(s.Token)
	r.builder.Field(2).(*array.Float32Builder).Append(s.Temperature)
	r.builder.Field(3).(*array.Float32Builder).Append(s.ProbSum)
	r.builder.Field(4).(*array.Int64Builder).Append(s.LatencyUS)
	r.builder.Field(5).(*array.Uint64Builder).Append(s.RNGOffset)
	r.rows++
}

// Len returns the number of buffered rows.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Snapshot drains the buffered rows into a record batch. The caller
// releases the record.
func (r *Recorder) Snapshot() arrow.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = 0
	return r.builder.NewRecord()
}

// WriteIPC drains the buffered rows and writes them as one Arrow IPC
// file to w.
func (r *Recorder) WriteIPC(w io.Writer) error {
	rec := r.Snapshot()
	defer rec.Release()
	return WriteRecordIPC(w, rec)
}

// WriteRecordIPC writes an already-snapshotted batch as an Arrow IPC
// file to w.
func WriteRecordIPC(w io.Writer, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return fmt.Errorf("trace: create ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("trace: write record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("trace: close ipc writer: %w", err)
	}
	return nil
}

// WriteFile drains the buffered rows into an Arrow IPC file at path.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if err := r.WriteIPC(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Release frees the underlying builder.
func (r *Recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builder.Release()
}
