package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrTelegramNotConfigured = errors.New("telegram not configured")
	ErrTelegramRejected      = errors.New("telegram rejected message")
	ErrTelegramUnavailable   = errors.New("telegram unavailable")
)

const defaultTelegramURL = "https://api.telegram.org"

type TelegramClient struct {
	BaseURL string
	Token   string
	ChatID  string
	Client  *http.Client
}

func NewTelegramClient(baseURL, token, chatID string) *TelegramClient {
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &TelegramClient{
		BaseURL: baseURL,
		Token:   token,
		ChatID:  chatID,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *TelegramClient) Configured() bool {
	return c != nil && c.Token != "" && c.ChatID != ""
}

func (c *TelegramClient) Name() string { return "telegram" }

type sendMessageReq struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramClient) Notify(ctx context.Context, n Notification) error {
	return c.Send(ctx, n.Message)
}

// Send posts text to the configured chat with Markdown parsing.
func (c *TelegramClient) Send(ctx context.Context, text string) error {
	if !c.Configured() {
		return ErrTelegramNotConfigured
	}

	body, err := json.Marshal(sendMessageReq{ChatID: c.ChatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		// the url carries the bot token, keep it out of the error
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("%w: %v", ErrTelegramUnavailable, err)
	}
	defer resp.Body.Close()

	var out telegramResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("%w: status=%d", ErrTelegramRejected, resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s", ErrTelegramRejected, out.Description)
	}
	return nil
}
