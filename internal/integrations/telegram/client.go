package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.telegram.org"

// Client: минимальный клиент Bot API, только sendMessage.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

var _ Sender = (*Client)(nil)

func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendMessageReq struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
}

type apiResp struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *Client) Send(ctx context.Context, chatID, text string, threadID *int64) bool {
	if err := c.sendMessage(ctx, chatID, text, threadID); err != nil {
		slog.Warn("telegram send failed", "chat_id", chatID, "err", err)
		return false
	}
	return true
}

func (c *Client) sendMessage(ctx context.Context, chatID, text string, threadID *int64) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/bot%s/sendMessage", c.token)

	payload := sendMessageReq{ChatID: chatID, Text: text, ParseMode: "HTML"}
	if threadID != nil && *threadID != 0 {
		payload.MessageThreadID = *threadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// в тексте ошибки url с токеном
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return errors.Wrap(uerr.Err, "do request")
		}
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	var ar apiResp
	if err := json.Unmarshal(raw, &ar); err != nil {
		return errors.Wrapf(err, "decode (http %d)", resp.StatusCode)
	}
	if !ar.OK {
		return fmt.Errorf("telegram api error %d: %s", ar.ErrorCode, ar.Description)
	}
	return nil
}
