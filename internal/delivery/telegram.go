package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sift/internal/config"
)

const (
	telegramAPIBase = "https://api.telegram.org"

	// defaultChunkSize stays under Telegram's 4096-character message cap
	// with room for markdown that survives a split.
	defaultChunkSize = 4000
)

// Telegram delivers digests through the bot sendMessage endpoint. Messages
// longer than the chunk size are split on line boundaries and sent in order.
type Telegram struct {
	baseURL   string
	token     string
	chatID    string
	chunkSize int
	client    *http.Client
}

var _ Channel = (*Telegram)(nil)

// NewTelegram builds a telegram channel from the bot settings.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Telegram{
		baseURL:   telegramAPIBase,
		token:     cfg.BotToken,
		chatID:    cfg.ChatID,
		chunkSize: chunkSize,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Channel.
func (t *Telegram) Name() string { return "telegram" }

// Send posts the digest to the configured chat. The subject is dropped: the
// digest body already opens with its own title line.
func (t *Telegram) Send(ctx context.Context, subject, body string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram channel misconfigured: token and chat_id required")
	}

	chunks := chunkMessage(body, t.chunkSize)
	for i, chunk := range chunks {
		if err := t.sendMessage(ctx, chunk); err != nil {
			return fmt.Errorf("sending telegram chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	slog.Info("digest sent to telegram", "chat_id", t.chatID, "chunks", len(chunks))
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}

// chunkMessage splits text into pieces of at most size bytes, cutting at the
// last newline before the limit where one exists so markdown lines are not
// broken mid-entry.
func chunkMessage(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := strings.LastIndex(text[:size], "\n")
		if cut <= 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
