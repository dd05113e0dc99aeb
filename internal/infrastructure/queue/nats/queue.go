package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/resilience"
)

const DefaultSubject = "lite.ingestion.completed"

// EventBus publishes and tails ingestion events on a single subject.
type EventBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	Name               string
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string, options Options) (*EventBus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	name := options.Name
	if name == "" {
		name = "lite-ingest"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{conn: conn, subject: subject, executor: options.ResilienceExecutor}, nil
}

// Connected reports whether the initial connect reached a server. With
// RetryOnFailedConnect the bus keeps reconnecting in the background either way.
func (b *EventBus) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishIngestion(ctx context.Context, event domain.IngestionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode ingestion event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish_ingestion", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeIngestion delivers events to handler until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (b *EventBus) SubscribeIngestion(ctx context.Context, handler func(context.Context, domain.IngestionEvent) error) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("ingestion_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			slog.Warn("ingestion_event_handler_failed", "case_id", event.CaseID, "log_id", event.LogID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	return nil
}

func decodeEvent(data []byte) (domain.IngestionEvent, error) {
	var event domain.IngestionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.IngestionEvent{}, err
	}
	if event.CaseID == "" {
		return domain.IngestionEvent{}, fmt.Errorf("event without case_id")
	}
	return event, nil
}
