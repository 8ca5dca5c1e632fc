package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"pricewatch/internal/model"
)

// TelegramSink sends fired-alert messages via the Telegram Bot API.
// The alert's Owner is used as the destination chat id; the engine itself
// never interprets it.
type TelegramSink struct {
	botToken string
	client   *http.Client
}

// NewTelegramSink creates a Telegram sink.
// botToken: Bot API token from @BotFather.
func NewTelegramSink(botToken string) *TelegramSink {
	return &TelegramSink{
		botToken: botToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramSink) Notify(ctx context.Context, ev model.Event) error {
	oneTime := "This was a one-time alert and has been deactivated."
	if !ev.Alert.OneShot {
		oneTime = "This is a recurring alert and will trigger again."
	}
	text := fmt.Sprintf("🔔 *Price Alert\\!*\n\n*%s*: %s\n\n_%s_",
		escapeMarkdown(ev.Alert.Asset), escapeMarkdown(describe(ev)), escapeMarkdown(oneTime))

	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    ev.Alert.Owner,
		"text":       text,
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[telegram] sent alert %s to %s", ev.Alert.ID, ev.Alert.Owner)
	return nil
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
