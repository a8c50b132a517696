package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/asquebay/order-sync-service/internal/model"
)

// Syncer — это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type Syncer interface {
	Sync(ctx context.Context, trigger model.SyncTrigger, window model.DateWindow, rng model.WorthRange) (model.SyncRun, error)
}

// SyncRequest — запрос на синхронизацию из топика
// пустые поля означают окно «вчера–сегодня» и отсутствие фильтра
type SyncRequest struct {
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	MinWorth string `json:"minWorth" validate:"omitempty,numeric"`
	MaxWorth string `json:"maxWorth" validate:"omitempty,numeric"`
}

var validate = validator.New()

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает запросы на синхронизацию из Kafka
type Consumer struct {
	reader  messageReader
	service Syncer
	log     *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service Syncer, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return newConsumer(reader, service, log)
}

func newConsumer(reader messageReader, service Syncer, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		service: service,
		log:     log.With(slog.String("component", "kafka_consumer")),
		now:     time.Now,
	}
}

// Start запускает Run в отдельной горутине; Stop дожидается её завершения
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(ctx)
	}()
}

// Stop ждет, пока начатая синхронизация допишет снапшот, и закрывает reader
// контекст Run должен быть уже отменен; ctx ограничивает ожидание
func (c *Consumer) Stop(ctx context.Context) error {
	const op = "transport.kafka.Consumer.Stop"

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.Close()
	case <-ctx.Done():
		c.log.Warn("consumer did not stop in time, closing reader")
		_ = c.Close()
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("context cancelled, stopping consumer")
			return
		default:
		}

		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.log.Info("kafka reader closed")
				return
			}
			c.log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		c.log.Info("received message",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)

		c.handleMessage(ctx, msg)

		// offset фиксируем всегда, даже если синхронизация упала;
		// отмена ctx во время синхронизации не должна оставлять сообщение незафиксированным
		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			c.log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// handleMessage парсит запрос и запускает синхронизацию
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var req SyncRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		c.log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return
	}

	if err := validate.Struct(req); err != nil {
		c.log.Warn("message validation failed, skipping", slog.String("error", err.Error()))
		return
	}

	window, err := model.ParseWindow(req.From, req.To, c.now())
	if err != nil {
		c.log.Warn("invalid sync window, skipping", slog.String("error", err.Error()))
		return
	}
	rng, err := model.ParseWorthRange(req.MinWorth, req.MaxWorth)
	if err != nil {
		c.log.Warn("invalid worth range, skipping", slog.String("error", err.Error()))
		return
	}

	run, err := c.service.Sync(context.WithoutCancel(ctx), model.TriggerEvent, window, rng)
	if err != nil {
		c.log.Error("requested sync failed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	c.log.Info("requested sync finished",
		slog.String("run_id", run.ID.String()),
		slog.Int("orders", run.Orders),
	)
}

// Close — graceful shutdown консьюмера
func (c *Consumer) Close() error {
	c.log.Info("closing kafka consumer")
	return c.reader.Close()
}
