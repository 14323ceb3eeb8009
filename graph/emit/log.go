package emit

import (
	"log/slog"
)

// LogEmitter writes events through a structured slog.Logger.
//
// Usage:
//
//	emitter := emit.NewLogEmitter(slog.Default())
//	engine, _ := graph.NewEngine(g, st, mux, graph.WithEmitter(emitter))
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter that logs at Info level. A nil logger
// falls back to slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the event with its identifying fields as attributes.
func (l *LogEmitter) Emit(event Event) {
	attrs := []any{
		slog.String("thread_id", event.ThreadID),
		slog.String("execution_id", event.ExecutionID),
		slog.Int("step", event.Step),
	}
	if event.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", event.NodeID))
	}
	for k, v := range event.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.Info(event.Msg, attrs...)
}
