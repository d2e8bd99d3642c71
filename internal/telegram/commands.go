package telegram

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gas-alert-bot/internal/chart"
	"gas-alert-bot/internal/types"
	"gas-alert-bot/lib/helpers"
	"gas-alert-bot/lib/translation"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// text translates and escapes a plain sentence for MarkdownV2
func text(msgID string, vars ...interface{}) string {
	return helpers.EscapeMarkdownV2(translation.Translate(msgID, vars...))
}

func chainList() string {
	var names []string
	for _, c := range types.Chains() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// HandleUpdate processes a command message and returns the reply to send
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) Message {
	m := u.Message
	reply := Message{ChatID: m.Chat.ID, MessageID: m.MessageID}

	var userID int64
	if m.From != nil {
		userID = m.From.ID
	}

	log.Debugf("received command: %s", m.Command())
	args := strings.Fields(m.CommandArguments())

	switch m.Command() {
	case "start":
		reply.Text = text("Welcome to the Cross-Chain Gas Fee Tracker! Get gas fee updates for Ethereum, BNB Smart Chain and Polygon and an alert when fees drop. Choose an option below to get started.")
		reply.Keyboard = mainMenu()
	case "gas":
		reply.Text = b.commandGas(ctx, args)
	case "alert":
		reply.Text = b.commandAlert(ctx, userID, m.Chat.ID, args)
	case "alerts":
		reply.Text = b.commandAlertList(ctx, m.Chat.ID)
	case "delete":
		reply.Text = b.commandDelete(ctx, m.Chat.ID, args)
	case "chart":
		reply.Text, reply.Photo = b.commandChart(ctx, m.Chat.ID, args)
	default:
		reply.Text = helpText()
	}
	return reply
}

func (b *Bot) handleCallbackData(ctx context.Context, data string, chatID, userID int64) Message {
	reply := Message{ChatID: chatID}
	action, arg, _ := strings.Cut(data, "|")

	switch action {
	case "gas":
		reply.Text = b.commandGas(ctx, []string{arg})
	case "menu_gas":
		reply.Text = text("Which chain?")
		reply.Keyboard = chainMenu()
	case "set_alert":
		reply.Text = text("Send /alert <chain> <threshold in Gwei>, for example /alert eth 8. Supported chains: %s", chainList())
	case "alerts":
		reply.Text = b.commandAlertList(ctx, chatID)
	case "help":
		reply.Text = helpText()
	default:
		reply.Text = text("Unknown action. Please try again.")
	}
	return reply
}

func mainMenu() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🔍 View Current Gas Fees"), "menu_gas"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📢 Set Gas Fee Alerts"), "set_alert"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📋 My Alerts"), "alerts"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📖 Help"), "help"),
		),
	)
	return &kb
}

func chainMenu() *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range types.Chains() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.DisplayName(), "gas|"+string(c)))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

func helpText() string {
	return text("Commands:\n"+
		"/gas <chain> - current gas fees\n"+
		"/alert <chain> <threshold> - notify me once when gas drops to the threshold (Gwei)\n"+
		"/alerts - list my alerts\n"+
		"/delete <id> - remove an alert\n"+
		"/chart <chain> - gas price over the last day\n\n"+
		"Supported chains: %s", chainList())
}

func (b *Bot) commandGas(ctx context.Context, args []string) string {
	chain := types.ChainEthereum
	if len(args) > 0 && args[0] != "" {
		c, err := types.ParseChain(args[0])
		if err != nil {
			return text("Unknown chain %q. Supported chains: %s", args[0], chainList())
		}
		chain = c
	}

	ctx, cancel := context.WithTimeout(ctx, b.Config.RequestTimeout)
	defer cancel()

	estimate, err := b.oracle.Fetch(ctx, chain)
	if err != nil {
		log.Errorf("❌ /gas %s failed: %v", chain, err)
		return text("Could not fetch gas fees for %s right now. Please try again later.", chain.DisplayName())
	}

	return fmt.Sprintf("*%s* %s\n• %s *%s*\n• %s *%s*\n• %s *%s*",
		helpers.EscapeMarkdownV2(chain.DisplayName()),
		text("gas fees (Gwei):"),
		text("Low:"), helpers.FormatFee(estimate.Low, true),
		text("Medium:"), helpers.FormatFee(estimate.Medium, true),
		text("High:"), helpers.FormatFee(estimate.High, true),
	)
}

// parseThreshold accepts "8", "0.5" or "8gwei"
func parseThreshold(s string) (float64, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "gwei")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid threshold %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, errors.Errorf("threshold must be a positive number, got %q", s)
	}
	return v, nil
}

func (b *Bot) commandAlert(ctx context.Context, userID, chatID int64, args []string) string {
	if len(args) != 2 {
		return text("Usage: /alert <chain> <threshold in Gwei>, for example /alert eth 8. Supported chains: %s", chainList())
	}

	chain, err := types.ParseChain(args[0])
	if err != nil {
		return text("Unknown chain %q. Supported chains: %s", args[0], chainList())
	}

	threshold, err := parseThreshold(args[1])
	if err != nil {
		return text("The threshold must be a positive number of Gwei, for example 8 or 0.5.")
	}

	n, err := b.alerts.CountOutstandingByChat(ctx, chatID)
	if err != nil {
		log.Errorf("❌ Failed to count alerts for chat %d: %v", chatID, err)
		return text("Failed to save alert. Please try again later.")
	}
	if n >= b.Config.MaxAlertsPerChat {
		return text("You already have %d active alerts. Delete one with /delete <id> first.", n)
	}

	a, err := b.alerts.InsertAlert(ctx, userID, chatID, chain, threshold)
	if err != nil {
		log.Errorf("❌ Failed to save alert: %v", err)
		return text("Failed to save alert. Please try again later.")
	}

	return fmt.Sprintf("✅ %s *%s* %s *%s Gwei* %s",
		text("Alert #%d set:", a.ID),
		helpers.EscapeMarkdownV2(chain.DisplayName()),
		text("gas at or below"),
		helpers.FormatFee(threshold, true),
		text("will notify you once."),
	)
}

func (b *Bot) commandAlertList(ctx context.Context, chatID int64) string {
	alerts, err := b.alerts.ListAlertsByChat(ctx, chatID)
	if err != nil {
		log.Errorf("❌ Error fetching alerts for chat %d: %v", chatID, err)
		return text("Failed to fetch your alerts. Please try again later.")
	}

	if len(alerts) == 0 {
		return text("You have no alerts. Create one with /alert <chain> <threshold>.")
	}

	var list strings.Builder
	list.WriteString(fmt.Sprintf("*%s*\n\n", text("Your alerts:")))
	for _, a := range alerts {
		status := "⏳"
		if a.Notified {
			status = "✅"
		}
		list.WriteString(fmt.Sprintf("%s \\#%d *%s* ≤ *%s Gwei* %s\n",
			status,
			a.ID,
			helpers.EscapeMarkdownV2(a.Chain.DisplayName()),
			helpers.FormatFee(a.Threshold, true),
			text("(created %s)", humanize.Time(a.CreatedAt)),
		))
	}
	return list.String()
}

func (b *Bot) commandDelete(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 1 {
		return text("Usage: /delete <id>. See /alerts for ids.")
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return text("Usage: /delete <id>. See /alerts for ids.")
	}

	err = b.alerts.DeleteAlert(ctx, chatID, id)
	switch {
	case errors.Is(err, types.ErrAlertNotFound):
		return text("Alert #%d not found.", id)
	case err != nil:
		log.Errorf("❌ Failed to delete alert %d: %v", id, err)
		return text("Failed to delete alert. Please try again later.")
	}
	return text("Alert #%d deleted.", id)
}

func (b *Bot) commandChart(ctx context.Context, chatID int64, args []string) (string, []byte) {
	chain := types.ChainEthereum
	if len(args) > 0 {
		c, err := types.ParseChain(args[0])
		if err != nil {
			return text("Unknown chain %q. Supported chains: %s", args[0], chainList()), nil
		}
		chain = c
	}

	snaps, err := b.alerts.ListFeeSnapshots(ctx, chain, time.Now().Add(-b.Config.ChartWindow))
	if err != nil {
		log.Errorf("❌ Failed to load fee history for %s: %v", chain, err)
		return text("Failed to load gas history. Please try again later."), nil
	}

	// draw the lowest outstanding threshold of this chat as a reference line
	var threshold float64
	if alerts, err := b.alerts.ListAlertsByChat(ctx, chatID); err == nil {
		for _, a := range alerts {
			if a.Chain == chain && !a.Notified && (threshold == 0 || a.Threshold < threshold) {
				threshold = a.Threshold
			}
		}
	}

	png, err := chart.RenderFeeHistory(chain, snaps, threshold)
	if err != nil {
		log.Debugf("No chart for %s: %v", chain, err)
		return text("Not enough gas history for %s yet. History is only recorded while someone has an alert on that chain.", chain.DisplayName()), nil
	}

	return text("%s gas price since %s", chain.DisplayName(), humanize.Time(snaps[0].ObservedAt)), png
}
