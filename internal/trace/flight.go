package trace

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightPusher ships trace batches to an Arrow Flight collector via
// DoPut. The connection is plaintext; traces carry no secrets.
type FlightPusher struct {
	client flight.Client
	path   string
}

// NewFlightPusher connects to a Flight endpoint. path names the
// dataset the collector files the batches under.
func NewFlightPusher(addr, path string) (*FlightPusher, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("trace: connect flight %s: %w", addr, err)
	}
	if path == "" {
		path = "sampling_trace"
	}
	return &FlightPusher{client: client, path: path}, nil
}

// Push sends one record batch.
func (p *FlightPusher) Push(ctx context.Context, rec arrow.Record) error {
	stream, err := p.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("trace: doput: %w", err)
	}

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	wr.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{p.path},
	})
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("trace: write batch: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("trace: close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("trace: close stream: %w", err)
	}
	return nil
}

func (p *FlightPusher) Close() error {
	return p.client.Close()
}
