package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusHandler получает уже декодированное событие смены статуса.
type StatusHandler func(ctx context.Context, ev messages.StatusChanged) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	// GroupID пустой: чтение одной партиции без коммитов в группу.
	GroupID string
}

// Consumer читает топик событий StatusChanged.
type Consumer struct {
	r     messageReader
	topic string
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if cfg.GroupID != "" {
		rc.GroupTopics = []string{cfg.Topic}
	} else {
		rc.Topic = cfg.Topic
	}
	return &Consumer{r: kafka.NewReader(rc), topic: cfg.Topic}
}

func newConsumerWithReader(r messageReader, topic string) *Consumer {
	return &Consumer{r: r, topic: topic}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// ConsumeStatusChanges читает до ошибки; отмена ctx завершает цикл без ошибки.
// Сообщение, которое не декодируется, логируется и коммитится, иначе оно
// блокировало бы партицию. Ошибка handler останавливает чтение без коммита.
func (c *Consumer) ConsumeStatusChanges(ctx context.Context, handle StatusHandler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "fetch %s", c.topic)
		}

		ev, err := messages.DecodeStatusChanged(msg.Value)
		if err != nil {
			slog.Warn("kafka: skip malformed status event",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
				"key", string(msg.Key), "error", err.Error())
		} else if err := handle(ctx, ev); err != nil {
			return errors.Wrapf(err, "handle event %s (item %d)", ev.EventID, ev.TrackingItemID)
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "commit %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
		}
	}
}
