// Package telegram wraps the Telegram Bot API behind the three delivery
// encodings the publisher uses, plus a startup connectivity probe and the
// plain-text notice sends used by the notifier.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	logx "autopost/pkg/logx"
)

const (
	// captionLimit is Telegram's photo caption budget; the gallery encoding
	// hard-truncates to it, the single-media fallback splits around it.
	captionLimit = 1000

	// MaxGalleryItems caps a media group per Telegram's album size.
	MaxGalleryItems = 10

	// messageLimit is a safe per-message text budget (Telegram allows 4096).
	messageLimit = 4000

	// wordJoiner renders as nothing but carries the preview link that makes
	// Telegram embed the image inside a text message.
	wordJoiner = "&#8288;"
)

type Config struct {
	Token     string
	ChannelID string

	// RatePerSec bounds outbound API calls. Telegram throttles bots hard,
	// so every send waits on this limiter.
	RatePerSec int

	// PollTimeout only affects the underlying long-poll client defaults.
	PollTimeout time.Duration

	// BaseURL overrides the Bot API endpoint (tests). Empty means
	// production; a non-empty value also skips the startup getMe.
	BaseURL string
}

// recipient addresses a chat by the raw string Telegram accepts
// ("-100..." numeric IDs or channel usernames).
type recipient string

func (r recipient) Recipient() string { return string(r) }

type Client struct {
	bot     *tele.Bot
	channel recipient
	limiter *rate.Limiter
	log     logx.Logger
}

// NormalizeChannel strips a leading "@" and validates "-100..." numeric IDs.
func NormalizeChannel(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "@")
	return id
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, fmt.Errorf("telegram channel id is empty")
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		settings.URL = cfg.BaseURL
		settings.Offline = true
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		bot:     b,
		channel: recipient(NormalizeChannel(cfg.ChannelID)),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

// TestConnection verifies both bot identity and channel visibility.
// Called once at startup, not before every send.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.bot.Me == nil {
		return fmt.Errorf("bot identity unavailable")
	}
	c.log.Info("bot connected", logx.String("username", c.bot.Me.Username))

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	chat, err := c.chatInfo()
	if err != nil {
		return fmt.Errorf("channel %q not reachable: %w", c.channel, err)
	}
	c.log.Info("channel reachable", logx.String("title", chat.Title), logx.Int64("chat_id", chat.ID))
	return nil
}

func (c *Client) chatInfo() (*tele.Chat, error) {
	s := string(c.channel)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return c.bot.ChatByID(id)
	}
	return c.bot.ChatByUsername(s)
}

// SendPlain delivers a no-media body as Markdown, chunking bodies that
// exceed Telegram's message budget.
func (c *Client) SendPlain(ctx context.Context, body string) error {
	text := ToMarkdown(body)
	for _, chunk := range splitText(text, messageLimit) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := c.bot.Send(c.channel, chunk, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		if err != nil {
			return err
		}
	}
	return nil
}

// SendSingleMedia delivers a one-media body as an HTML message with the
// image embedded via an invisible preview link. If Telegram rejects the
// primary form, exactly one fallback is attempted: the image as a photo
// with a capped caption, plus a follow-up message for any remainder.
func (c *Client) SendSingleMedia(ctx context.Context, body, url string) error {
	text := PrepareHTML(body)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	embedded := fmt.Sprintf(`<a href="%s">%s</a>%s`, url, wordJoiner, text)
	_, err := c.bot.Send(c.channel, embedded, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: false,
	})
	if err == nil {
		return nil
	}
	c.log.Warn("embedded-image send rejected, falling back to photo+caption", logx.Err(err))

	caption, rest := SplitRunes(text, captionLimit)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(url), Caption: caption}
	if _, err := c.bot.Send(c.channel, photo, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return fmt.Errorf("photo fallback: %w", err)
	}
	if rest != "" {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.bot.Send(c.channel, rest, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
			return fmt.Errorf("caption remainder: %w", err)
		}
	}
	return nil
}

// SendGallery delivers a multi-media body as a photo album: at most
// MaxGalleryItems attachments, caption (hard-truncated) on the first item
// only, no follow-up message.
func (c *Client) SendGallery(ctx context.Context, body string, urls []string) error {
	if len(urls) > MaxGalleryItems {
		urls = urls[:MaxGalleryItems]
	}
	caption := TruncRunes(ToMarkdown(body), captionLimit)

	album := make(tele.Album, 0, len(urls))
	for i, u := range urls {
		p := &tele.Photo{File: tele.FromURL(u)}
		if i == 0 {
			p.Caption = caption
		}
		album = append(album, p)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.SendAlbum(c.channel, album, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	return err
}

// SendNotice sends an operator message to an arbitrary chat in HTML mode,
// so notification templates may carry light markup. Used by the notifier;
// delivery posts never go through here.
func (c *Client) SendNotice(ctx context.Context, chatID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.Send(recipient(NormalizeChannel(chatID)), text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

// splitText splits long messages into chunks, preferring newline boundaries
// near the end of each window.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = messageLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		// A window of only newlines trims to nothing; Telegram rejects
		// empty message text, so drop it.
		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		if chunk != "" {
			out = append(out, chunk)
		}
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
