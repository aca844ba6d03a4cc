package telegram

import (
	"context"
	"log/slog"
)

// LogSink пишет сообщения в лог вместо отправки. Используется без bot token.
type LogSink struct{}

var _ Sender = LogSink{}

func (LogSink) Send(ctx context.Context, chatID, text string, threadID *int64) bool {
	attrs := []any{"chat_id", chatID, "len", len(text)}
	if threadID != nil {
		attrs = append(attrs, "thread_id", *threadID)
	}
	slog.Info("telegram message (log sink)", attrs...)
	return true
}
