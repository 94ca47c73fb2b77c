// Package notify delivers operation events to logs and to optional subscribers.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var (
	_ adapter.StatusNotifier = (*LogNotifier)(nil)
	_ adapter.StatusNotifier = (*RedisNotifier)(nil)
	_ adapter.StatusNotifier = Multi(nil)
)

// LogNotifier writes one log line per event.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{log: &l}
}

func (n *LogNotifier) Notify(_ context.Context, ev model.OperationEvent) {
	switch ev.Kind {
	case model.EventStatusChanged:
		if ev.Previous == "" {
			n.log.Info().Str("operation_id", ev.OperationID).Str("type", ev.OperationType).
				Str("status", string(ev.Status)).Msg("initial operation status")
			return
		}
		n.log.Info().Str("operation_id", ev.OperationID).Str("type", ev.OperationType).
			Str("from", string(ev.Previous)).Str("status", string(ev.Status)).Msg("operation status changed")
	case model.EventFinished:
		n.log.Info().Str("operation_id", ev.OperationID).Str("type", ev.OperationType).
			Str("file", ev.FileName).Msg("operation finished, artifact downloaded")
	case model.EventFailed:
		n.log.Warn().Str("operation_id", ev.OperationID).Str("type", ev.OperationType).
			Str("status", string(ev.Status)).Msg("operation failed")
	case model.EventTimedOut:
		n.log.Warn().Str("operation_id", ev.OperationID).Str("type", ev.OperationType).
			Str("status", string(ev.Status)).Msg("operation did not finish before the deadline")
	}
}

// Publisher is satisfied by the redis client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisNotifier publishes each event as JSON on "<channel>:<assetId>". Publish failures are
// logged and never reach the poller.
type RedisNotifier struct {
	pub     Publisher
	channel string
	log     *zerolog.Logger
}

func NewRedisNotifier(pub Publisher, channel string, logger *zerolog.Logger) *RedisNotifier {
	l := logger.With().Str("component", "RedisNotifier").Logger()
	return &RedisNotifier{pub: pub, channel: channel, log: &l}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev model.OperationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Msg("marshal event")
		return
	}
	if err := n.pub.Publish(ctx, n.Channel(ev.AssetID), payload); err != nil {
		n.log.Warn().Err(err).Str("operation_id", ev.OperationID).Msg("publish event")
	}
}

func (n *RedisNotifier) Channel(assetID string) string {
	if assetID == "" {
		return n.channel
	}
	return n.channel + ":" + assetID
}

// Multi fans an event out to every notifier in order.
type Multi []adapter.StatusNotifier

func (m Multi) Notify(ctx context.Context, ev model.OperationEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Recorder keeps every event in memory. Useful for callers that want a run transcript.
type Recorder struct {
	mu     sync.Mutex
	events []model.OperationEvent
}

func (r *Recorder) Notify(_ context.Context, ev model.OperationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events, optionally limited to one operation.
func (r *Recorder) Events(operationID string) []model.OperationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OperationEvent, 0, len(r.events))
	for _, ev := range r.events {
		if operationID == "" || ev.OperationID == operationID {
			out = append(out, ev)
		}
	}
	return out
}
