package telegram

import "context"

// Sender доставляет текст в чат; false означает, что сообщение не ушло.
// Ошибки внутри логируются, наружу отдаётся только результат.
type Sender interface {
	Send(ctx context.Context, chatID, text string, threadID *int64) bool
}
