package events

import (
	"context"
	"log/slog"
)

// LogPublisher logs events instead of sending them. It is used when no broker
// is configured or the broker is unreachable at startup.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher returns a publisher that writes each event to log at debug level.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.log.DebugContext(ctx, "event", "type", ev.Type, "actor_id", ev.ActorID, "entity_id", ev.EntityID, "data", redact(ev.Data))
	return nil
}

// secretKeys name event data that must never reach a log.
var secretKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"password":      true,
}

func redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if secretKeys[k] {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}

func (p *LogPublisher) Close() {}

// Emit publishes ev on pub and logs a failure instead of returning it.
// A nil pub drops the event.
func Emit(ctx context.Context, pub Publisher, log *slog.Logger, ev Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.WarnContext(ctx, "event not published", "type", ev.Type, "error", err)
	}
}
