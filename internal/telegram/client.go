// Package telegram delivers analysis summaries and charts via the Telegram Bot API.
//
// Messages use MarkdownV2, so every dynamic fragment goes through escapeMarkdownV2.
// Delivery is retried with a linear backoff.
package telegram

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/monitor"
	"github.com/rewired-gh/macrocorr/internal/report"
)

// sender is the subset of *tgbotapi.BotAPI the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendInflation sends the inflation summary followed by one photo per chart.
func (c *Client) SendInflation(rep *models.InflationReport, charts []string) error {
	return c.deliver(formatInflation(rep), charts)
}

// SendDecoupling sends the decoupling summary followed by one photo per chart.
func (c *Client) SendDecoupling(rep *models.DecouplingReport, charts []string) error {
	return c.deliver(formatDecoupling(rep), charts)
}

// SendShifts reports results that moved since the previous run of the given kind.
// Nothing is sent when shifts is empty.
func (c *Client) SendShifts(kind string, shifts []monitor.Shift) error {
	if len(shifts) == 0 {
		return nil
	}
	return c.deliver(formatShifts(kind, shifts), nil)
}

func (c *Client) deliver(text string, charts []string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if err := c.send(msg); err != nil {
		return err
	}

	for _, path := range charts {
		photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FilePath(path))
		photo.Caption = filepath.Base(path)
		if err := c.send(photo); err != nil {
			return fmt.Errorf("chart %s: %w", filepath.Base(path), err)
		}
	}
	logger.Info("Sent Telegram summary with %d chart(s)", len(charts))
	return nil
}

func (c *Client) send(msg tgbotapi.Chattable) error {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatInflation(rep *models.InflationReport) string {
	var b strings.Builder
	b.WriteString("📊 *Crypto vs Inflation*\n")
	fmt.Fprintf(&b, "📅 %s · %s\n\n", escapeMarkdownV2(rep.Range.String()), escapeMarkdownV2(rep.IndexSeriesID))

	for _, c := range rep.Correlations {
		fmt.Fprintf(&b, "%s *%s*: r\\=%s, p\\=%s\n",
			marker(c.Result.Significant()),
			escapeMarkdownV2(c.Asset.Label),
			escapeMarkdownV2(fmt.Sprintf("%.3f", c.Result.Coefficient)),
			escapeMarkdownV2(fmt.Sprintf("%.3f", c.Result.PValue)))
	}

	t := rep.RollingInflationTest
	fmt.Fprintf(&b, "\n%s %s rolling %s vs inflation: r\\=%s, p\\=%s\n",
		marker(t.Significant()),
		escapeMarkdownV2(fmt.Sprintf("%d-month", rep.RollingWindow)),
		escapeMarkdownV2(rep.RollingPair.Label()),
		escapeMarkdownV2(fmt.Sprintf("%.3f", t.Coefficient)),
		escapeMarkdownV2(fmt.Sprintf("%.3f", t.PValue)))
	return b.String()
}

func formatDecoupling(rep *models.DecouplingReport) string {
	var b strings.Builder
	b.WriteString("🔗 *Crypto–Equity Decoupling*\n")
	fmt.Fprintf(&b, "📅 %s vs %s, %d\\-day window\n\n",
		escapeMarkdownV2(rep.EarlyYears.String()), escapeMarkdownV2(rep.LateYears.String()), rep.Window)

	for _, d := range rep.Pairs {
		arrow := "➡️"
		switch d.Direction() {
		case "increased":
			arrow = "📈"
		case "decreased":
			arrow = "📉"
		}
		fmt.Fprintf(&b, "%s %s *%s*: %s → %s \\(p\\=%s\\)\n",
			marker(d.Test.Significant()), arrow,
			escapeMarkdownV2(d.Pair.Label()),
			escapeMarkdownV2(fmt.Sprintf("%.3f", d.EarlyMean)),
			escapeMarkdownV2(fmt.Sprintf("%.3f", d.LateMean)),
			escapeMarkdownV2(fmt.Sprintf("%.4f", d.Test.PValue)))
	}

	fmt.Fprintf(&b, "\n_%s_\n", escapeMarkdownV2(report.Verdict(rep)))
	return b.String()
}

func formatShifts(kind string, shifts []monitor.Shift) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *%s results changed since the previous run*\n\n", escapeMarkdownV2(kind))
	for i, s := range shifts {
		emoji := "📈"
		if s.Direction() == "decrease" {
			emoji = "📉"
		}
		if s.Flipped() {
			emoji = "⚠️"
		}
		fmt.Fprintf(&b, "%d\\. %s %s\n", i+1, emoji, escapeMarkdownV2(s.String()))
	}
	return b.String()
}

func marker(significant bool) string {
	if significant {
		return "✅"
	}
	return "▫️"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the escape character itself
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
