package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketpilot/platform/apperr"
	"marketpilot/platform/config"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends alerts through the Bot API to the operator's chat.
type Telegram struct {
	http    *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegram builds the notifier, or returns nil when no bot is configured.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	if cfg.GetTelegramBotToken() == "" || cfg.GetTelegramOperatorChatID() == "" {
		return nil
	}
	return &Telegram{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
		token:   cfg.GetTelegramBotToken(),
		chatID:  cfg.GetTelegramOperatorChatID(),
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends one message to the operator chat.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/bot"+t.token+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "telegram unreachable", err)
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !result.OK {
		return apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("telegram rejected message: %s", result.Description))
	}
	return nil
}
