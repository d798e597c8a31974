package telemetry

import (
	"context"
	"log/slog"
)

// Event is a client-side telemetry event.
type Event struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Emitter reports a single event to one destination.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogEmitter writes events to the structured log. It is the fallback when no
// remote emitter is configured or a remote emitter fails.
type LogEmitter struct{}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) error {
	slog.Info("Telemetry event", "name", event.Name, "fields", event.Fields)
	return nil
}

// Manager fans an event out to the registered emitters. Emission is
// fire-and-forget: failures are logged locally and never surfaced.
type Manager struct {
	emitters []Emitter
}

// NewManager creates a telemetry manager over the given emitters. With no
// emitters, events fall back to the log.
func NewManager(emitters ...Emitter) *Manager {
	return &Manager{emitters: emitters}
}

// Emit reports the event to every emitter. It never fails.
func (m *Manager) Emit(ctx context.Context, event Event) {
	if len(m.emitters) == 0 {
		slog.Info("Telemetry event", "name", event.Name, "fields", event.Fields)
		return
	}
	for _, emitter := range m.emitters {
		if err := emitter.Emit(ctx, event); err != nil {
			slog.Warn("Failed to emit telemetry event", "name", event.Name, "err", err)
		}
	}
}
