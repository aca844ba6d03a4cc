// Package events publishes status transitions to the broker after commit.
package events

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Emitter работает по принципу best effort, ошибки публикации только логируются.
// Нулевой *Emitter ничего не делает.
type Emitter struct {
	pub   Publisher
	topic string
}

func NewEmitter(pub Publisher, topic string) *Emitter {
	if pub == nil || topic == "" {
		return nil
	}
	return &Emitter{pub: pub, topic: topic}
}

// Change: пара "посылка + запись истории", из которой собирается событие.
type Change struct {
	Item   *models.TrackingItem
	Record *models.StatusHistoryRecord
}

func (e *Emitter) StatusChanged(ctx context.Context, changes ...Change) {
	if e == nil {
		return
	}
	for _, ch := range changes {
		var prev *string
		if ch.Record.PreviousStatus != nil {
			p := ch.Record.PreviousStatus.String()
			prev = &p
		}
		msg := messages.NewStatusChanged(
			ch.Item.ID, ch.Item.TrackingCode, ch.Item.BranchID,
			prev, ch.Record.NewStatus.String(), string(ch.Record.Source),
			ch.Record.ChangedBy, ch.Record.CreatedAt,
		)
		b, err := msg.Encode()
		if err != nil {
			slog.Warn("status event encode failed", "item_id", ch.Item.ID, "err", err)
			continue
		}
		if err := e.pub.Publish(ctx, e.topic, msg.Key(), b); err != nil {
			slog.Warn("status event publish failed", "item_id", ch.Item.ID, "event_id", msg.EventID, "err", err)
		}
	}
}
