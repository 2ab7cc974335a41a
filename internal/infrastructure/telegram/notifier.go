package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ArxivDigest/internal/ports"
)

// MaxMessageRunes is Telegram's limit for one text message.
const MaxMessageRunes = 4096

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. The chat may be a
// numeric id or an @channel name.
func NewNotifier(botToken, chatID string) *Notifier {
	return NewNotifierWithClient(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
}

// NewNotifierWithClient targets a custom API endpoint, formatted like
// tgbotapi.APIEndpoint.
func NewNotifierWithClient(botToken, chatID, endpoint string, client *http.Client) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   strings.TrimSpace(chatID),
		endpoint: endpoint,
		client:   client,
	}
}

// PublishDigest posts the digest as plain text, split into as many messages
// as Telegram's size limit requires.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	api, err := n.bot()
	if err != nil {
		return err
	}

	for i, chunk := range SplitMessage(digest, MaxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := n.message(chunk)
		if err != nil {
			return err
		}
		if _, err := api.Send(msg); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (n *Notifier) bot() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api != nil {
		return n.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(n.botToken, n.endpoint, n.client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	n.api = api
	return api, nil
}

func (n *Notifier) message(text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(n.chatID, "@") {
		msg := tgbotapi.NewMessageToChannel(n.chatID, text)
		msg.DisableWebPagePreview = true
		return msg, nil
	}
	id, err := strconv.ParseInt(n.chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", n.chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.DisableWebPagePreview = true
	return msg, nil
}

// SplitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			chunks = append(chunks, part)
		}
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}
