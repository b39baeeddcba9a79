// Package notify fans operator-facing summaries and error reports out to a
// notification chat, with an admin direct chat as fallback. Everything here
// is best-effort: a failed notification is logged and never propagated.
package notify

import (
	"context"
	"fmt"
	"strings"

	"autopost/internal/queue"
	logx "autopost/pkg/logx"
)

// Sender is the sliver of the Telegram client the notifier needs.
type Sender interface {
	SendNotice(ctx context.Context, chatID, text string) error
}

// KV is one line of a summary; order is preserved in the rendered message.
type KV struct {
	Key   string
	Value string
}

type Config struct {
	// ChannelID is the preferred notification chat.
	ChannelID string
	// AdminChatID is tried when the channel send fails.
	AdminChatID string
}

type Notifier struct {
	cfg    Config
	sender Sender
	log    logx.Logger
}

func New(cfg Config, sender Sender, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{cfg: cfg, sender: sender, log: log}
}

// Info sends an informational summary: a title plus ordered key/value lines.
func (n *Notifier) Info(ctx context.Context, title string, details []KV) {
	var b strings.Builder
	b.WriteString("📢 ")
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, kv := range details {
		fmt.Fprintf(&b, "• %s: %s\n", kv.Key, kv.Value)
	}
	n.deliver(ctx, b.String())
}

// Error sends an error report with an optional item snapshot.
func (n *Notifier) Error(ctx context.Context, msg string, item *queue.Item) {
	var b strings.Builder
	b.WriteString("❌ ОШИБКА ПУБЛИКАЦИИ\n\n")
	fmt.Fprintf(&b, "Сообщение: %s\n", msg)
	if item != nil {
		b.WriteString("\nДетали поста:\n")
		fmt.Fprintf(&b, "• Дата: %s\n", orUnknown(item.Date))
		fmt.Fprintf(&b, "• Время: %s\n", orUnknown(item.Time))
		fmt.Fprintf(&b, "• Длина: %d символов\n", len([]rune(item.Body)))
		fmt.Fprintf(&b, "• Изображения: %s\n", yesNo(len(item.Media) > 0))
	}
	n.deliver(ctx, b.String())
}

func (n *Notifier) deliver(ctx context.Context, text string) {
	if n.sender == nil {
		return
	}

	if n.cfg.ChannelID != "" {
		if err := n.sender.SendNotice(ctx, n.cfg.ChannelID, text); err == nil {
			return
		} else {
			n.log.Warn("notification channel send failed, trying admin chat",
				logx.String("chat", n.cfg.ChannelID), logx.Err(err))
		}
	}

	if n.cfg.AdminChatID == "" {
		n.log.Warn("no admin chat configured for notifications")
		return
	}
	if err := n.sender.SendNotice(ctx, n.cfg.AdminChatID, text); err != nil {
		n.log.Error("notification delivery failed", logx.String("chat", n.cfg.AdminChatID), logx.Err(err))
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Неизвестно"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}
