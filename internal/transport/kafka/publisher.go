package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/asquebay/order-sync-service/internal/model"
)

// EventSnapshotWritten — тип события о новом снапшоте
const EventSnapshotWritten = "orders.snapshot.written"

// SnapshotEvent — тело события о записанном снапшоте
// сами заказы в событие не попадают, только сводка
type SnapshotEvent struct {
	Type       string            `json:"type"`
	RunID      uuid.UUID         `json:"run_id"`
	Trigger    model.SyncTrigger `json:"trigger"`
	Window     model.DateWindow  `json:"window"`
	Orders     int               `json:"orders"`
	Degraded   int               `json:"degraded"`
	TotalWorth decimal.Decimal   `json:"total_worth"`
	WrittenAt  time.Time         `json:"written_at"`
}

// NewSnapshotEvent собирает событие по итогам запуска
func NewSnapshotEvent(run model.SyncRun, orders []model.OrderDetail) SnapshotEvent {
	writtenAt := time.Now()
	if run.FinishedAt != nil {
		writtenAt = *run.FinishedAt
	}

	return SnapshotEvent{
		Type:       EventSnapshotWritten,
		RunID:      run.ID,
		Trigger:    run.Trigger,
		Window:     run.Window,
		Orders:     len(orders),
		Degraded:   model.CountDegraded(orders),
		TotalWorth: model.TotalWorth(orders),
		WrittenAt:  writtenAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher публикует событие о каждом успешно записанном снапшоте
type Publisher struct {
	writer messageWriter
	log    *slog.Logger
}

// NewPublisher создает писателя (producer-а) в указанный топик
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer, log)
}

func newPublisher(writer messageWriter, log *slog.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		log:    log.With(slog.String("component", "kafka_publisher")),
	}
}

// Name возвращает имя получателя снапшота для логов
func (p *Publisher) Name() string {
	return "kafka"
}

// OnSnapshot отправляет событие; ключ сообщения — ID запуска
func (p *Publisher) OnSnapshot(ctx context.Context, run model.SyncRun, orders []model.OrderDetail) error {
	const op = "transport.kafka.Publisher.OnSnapshot"

	event := NewSnapshotEvent(run, orders)
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(run.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(EventSnapshotWritten)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("snapshot event published",
		slog.String("run_id", run.ID.String()),
		slog.Int("orders", event.Orders),
	)
	return nil
}

// Close закрывает писателя
func (p *Publisher) Close() error {
	p.log.Info("closing kafka publisher")
	return p.writer.Close()
}
