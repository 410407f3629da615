// Package notification delivers calibration results to people
package notification

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/calibrator/pkg/core"
)

// telegramMessageLimit is the longest text accepted by sendMessage
const telegramMessageLimit = 4096

// TelegramSettings configures the bot token and the users allowed to talk to it
type TelegramSettings struct {
	Token string `mapstructure:"token"`
	Users []int  `mapstructure:"users"`
}

// telegram implements the core.NotifierWithStart interface
type telegram struct {
	settings TelegramSettings
	storage  core.ResultStorage
	client   *tb.Bot
}

// Option is a function that configures a telegram instance
type Option func(telegram *telegram)

// WithStorage enables the /last and /best commands over stored records
func WithStorage(storage core.ResultStorage) Option {
	return func(t *telegram) {
		t.storage = storage
	}
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(settings TelegramSettings, options ...Option) (core.NotifierWithStart, error) {
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    createAuthMiddleware(poller, settings),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &telegram{
		settings: settings,
		client:   client,
	}

	for _, option := range options {
		option(bot)
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/last", bot.LastHandle)
	client.Handle("/best", bot.BestHandle)

	return bot, nil
}

// createAuthMiddleware drops updates from users outside the allow list
func createAuthMiddleware(poller *tb.LongPoller, settings TelegramSettings) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/last", Description: "Most recent calibration"},
		{Text: "/best", Description: "Highest scoring calibration"},
	})
}

// Start begins polling and greets every authorized user
func (t *telegram) Start() {
	go t.client.Start()
	t.Notify("Calibrator bot initialized.")
}

// Notify sends text to every authorized user, split to fit the message
// limit. A leading "Subject:" line becomes a bold title.
func (t *telegram) Notify(text string) {
	if subject, body, found := splitSubject(text); found {
		text = fmt.Sprintf("*%s*\n%s", subject, body)
	}

	for _, user := range t.settings.Users {
		for _, chunk := range splitMessage(text, telegramMessageLimit) {
			if _, err := t.client.Send(&tb.User{ID: int64(user)}, chunk); err != nil {
				log.WithError(err).Error("failed to send notification")
			}
		}
	}
}

func (t *telegram) sendMessage(to *tb.User, text string) {
	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		if _, err := t.client.Send(to, chunk); err != nil {
			log.WithError(err).Error("failed to send message")
		}
	}
}

func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.WithError(err).Error("failed to get commands")
		t.sendMessage(m.Sender, "Failed to retrieve commands")
		return
	}

	lines := lo.Map(commands, func(c tb.Command, _ int) string {
		return fmt.Sprintf("/%s - %s", strings.TrimPrefix(c.Text, "/"), c.Description)
	})
	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

func (t *telegram) LastHandle(m *tb.Message) {
	t.replyWithRecord(m, func(records []*core.CalibrationRecord) *core.CalibrationRecord {
		return records[len(records)-1]
	})
}

func (t *telegram) BestHandle(m *tb.Message) {
	t.replyWithRecord(m, func(records []*core.CalibrationRecord) *core.CalibrationRecord {
		return lo.MaxBy(records, func(a, b *core.CalibrationRecord) bool {
			return a.Score > b.Score
		})
	})
}

func (t *telegram) replyWithRecord(m *tb.Message, pick func([]*core.CalibrationRecord) *core.CalibrationRecord) {
	if t.storage == nil {
		t.sendMessage(m.Sender, "No result storage configured.")
		return
	}

	records, err := t.storage.Records()
	if err != nil {
		log.WithError(err).Error("failed to read records")
		t.sendMessage(m.Sender, "Failed to read calibration records.")
		return
	}

	if len(records) == 0 {
		t.sendMessage(m.Sender, "No calibration registered.")
		return
	}

	t.sendMessage(m.Sender, FormatRecord(pick(records)))
}

// OnError notifies users about a failed or fruitless calibration
func (t *telegram) OnError(err error) {
	t.Notify(formatError(err))
}

func formatError(err error) string {
	var sb strings.Builder
	if errors.Is(err, core.ErrNoConfiguration) {
		sb.WriteString("⚠️ NO CONFIGURATION FOUND\n")
	} else {
		sb.WriteString("🛑 ERROR\n")
	}
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())
	return sb.String()
}

// FormatRecord renders a stored calibration as a short markdown message
func FormatRecord(record *core.CalibrationRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Calibration* `%s`\n", record.CalibrationDate.Format(time.DateTime))
	fmt.Fprintf(&sb, "Score: `%.2f` | Iterations: `%d`\n", record.Score, record.IterationsPerformed)
	fmt.Fprintf(&sb, "Periods: `%s`\n", strings.Join(record.PeriodsUsed, ", "))
	sb.WriteString("-----\n")

	for _, name := range core.ParameterNames {
		value, err := record.Parameters.Value(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "%s: `%g`\n", name, value)
	}

	sb.WriteString("-----\n")
	m := record.Metrics
	fmt.Fprintf(&sb, "Trades: `%d` | Win rate: `%.1f%%`\n", m.TotalTrades, m.WinRate)
	fmt.Fprintf(&sb, "Profit factor: `%.2f` | Return: `%.2f%%`\n", m.ProfitFactor, m.TotalReturn)
	fmt.Fprintf(&sb, "Max drawdown: `%.2f%%`", m.MaxDrawdown)

	return sb.String()
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line boundaries
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
	)

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}

		if current.Len()+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
