package telemetry

import (
	"context"
	"fmt"
)

// EventReporter is the remote operation an HTTPEmitter posts events to.
// *verifyapi.Client satisfies it.
type EventReporter interface {
	ReportEvent(ctx context.Context, event interface{}) error
}

// HTTPEmitter posts events to the verification backend's telemetry endpoint.
type HTTPEmitter struct {
	reporter EventReporter
}

func NewHTTPEmitter(reporter EventReporter) *HTTPEmitter {
	return &HTTPEmitter{reporter: reporter}
}

func (e *HTTPEmitter) Emit(ctx context.Context, event Event) error {
	if err := e.reporter.ReportEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to report event: %w", err)
	}
	return nil
}
