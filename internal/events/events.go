// Package events optionally publishes narrative lifecycle transitions to
// Kafka so downstream consumers (alerting, analytics) can react without
// polling the narratives collection. Disabled by default.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// LifecycleEvent is the payload published whenever a narrative's
// lifecycle_state changes during a detection cycle.
type LifecycleEvent struct {
	NarrativeID   string                    `json:"narrative_id"`
	NucleusEntity string                    `json:"nucleus_entity"`
	PreviousState persistence.LifecycleState `json:"previous_state,omitempty"`
	NewState      persistence.LifecycleState `json:"new_state"`
	ArticleCount  int                        `json:"article_count"`
	Timestamp     time.Time                  `json:"timestamp"`
}

// Publisher publishes LifecycleEvents to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// New builds a Publisher when cfg.Enabled; returns (nil, nil) otherwise.
// Publish and Close both tolerate a nil receiver so callers can wire it
// unconditionally.
func New(cfg config.EventsConfig, log zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Publisher{writer: writer, log: log}, nil
}

// Publish emits one lifecycle transition. Failures are logged, not
// returned: a broker outage must never abort a detection cycle (§7 treats
// this the same as any other best-effort side effect).
func (p *Publisher) Publish(ctx context.Context, ev LifecycleEvent) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn().Err(err).Msg("lifecycle_event_marshal_failed")
		return
	}
	msg := kafka.Message{Key: []byte(ev.NarrativeID), Value: payload, Time: ev.Timestamp}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("narrative_id", ev.NarrativeID).Msg("lifecycle_event_publish_failed")
	}
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.log.Warn().Err(err).Msg("kafka_writer_close_failed")
	}
}
