package sse

import (
	"context"
	"log/slog"
)

// Outcome says why Pump returned.
type Outcome int

const (
	// Finished means the event channel closed after its terminal frame.
	Finished Outcome = iota
	// Disconnected means the client went away first.
	Disconnected
)

// Pump copies frames from events to the client until the channel closes or
// the client disconnects, sending keep-alives while idle.
func Pump(ctx context.Context, w *Writer, events <-chan string, cfg *Config, logger *slog.Logger) Outcome {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	keepAlive := NewTickerKeepAlive(cfg.KeepAliveInterval)
	keepAliveStopped := keepAlive.Start(w, logger)
	defer keepAlive.Stop()

	for {
		select {
		case frame, ok := <-events:
			if !ok {
				return Finished
			}
			if err := w.WriteFrame(frame); err != nil {
				logger.Info("client disconnected during write", "error", err)
				return Disconnected
			}
		case <-keepAliveStopped:
			return Disconnected
		case <-ctx.Done():
			return Disconnected
		}
	}
}
