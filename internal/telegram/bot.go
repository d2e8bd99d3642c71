package telegram

import (
	"context"
	"net/http"
	"time"

	"gas-alert-bot/internal/metrics"
	"gas-alert-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	defaultDeliveryTimeout  = 10 * time.Second
	defaultMaxAlertsPerChat = 10
	defaultChartWindow      = 24 * time.Hour
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, alerts AlertRepository, oracle FeeOracle, m *metrics.Metrics) (*Bot, error) {
	c = withDefaults(c)

	// the long-poll request must outlive the client timeout
	client := &http.Client{Timeout: c.RequestTimeout + time.Duration(c.UpdatesTimeout)*time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	notify, err := tgbotapi.NewBotAPIWithClient(c.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: c.DeliveryTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram notification client")
	}

	b := newBot(bot, c, alerts, oracle, m)
	b.notify = notify
	return b, nil
}

func newBot(api *tgbotapi.BotAPI, c BotConfig, alerts AlertRepository, oracle FeeOracle, m *metrics.Metrics) *Bot {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Bot{
		Bot:     api,
		Config:  withDefaults(c),
		notify:  api,
		alerts:  alerts,
		oracle:  oracle,
		metrics: m,
	}
}

func withDefaults(c BotConfig) BotConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = defaultDeliveryTimeout
	}
	if c.MaxAlertsPerChat <= 0 {
		c.MaxAlertsPerChat = defaultMaxAlertsPerChat
	}
	if c.ChartWindow <= 0 {
		c.ChartWindow = defaultChartWindow
	}
	return c
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// StopReceivingUpdates ends the long-poll loop
func (b *Bot) StopReceivingUpdates() {
	b.Bot.StopReceivingUpdates()
}

// Send delivers an alert notification. Every failure, whether a blocked user,
// an unknown chat, the network or ctx running out, is reported as a
// *types.DeliveryError. The Bot API client takes no context, so a send cut
// off by ctx may still reach the chat later.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return &types.DeliveryError{ChatID: chatID, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		_, err := b.notify.Send(msg)
		done <- errors.Wrapf(err, "could not send notification to chat %d", chatID)
	}()

	select {
	case <-ctx.Done():
		return &types.DeliveryError{ChatID: chatID, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &types.DeliveryError{ChatID: chatID, Err: err}
		}
		return nil
	}
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	if m.Photo != nil {
		photo := tgbotapi.NewPhoto(m.ChatID, tgbotapi.FileBytes{
			Name:  "chart.png",
			Bytes: m.Photo,
		})
		photo.Caption = m.Text
		photo.ParseMode = tgbotapi.ModeMarkdownV2
		photo.ReplyToMessageID = m.MessageID
		_, err := b.Bot.Send(photo)
		return errors.Wrapf(err, "could not send chart to chat %d", m.ChatID)
	}

	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if m.Keyboard != nil {
		msg.ReplyMarkup = *m.Keyboard
	}
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// HandleCallbackQuery answers an inline keyboard press and sends the result
func (b *Bot) HandleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	var userID int64
	if cq.From != nil {
		userID = cq.From.ID
	}

	reply := b.handleCallbackData(ctx, cq.Data, cq.Message.Chat.ID, userID)

	if _, err := b.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Debugf("Failed to answer callback query: %v", err)
	}
	if err := b.SendMessage(reply); err != nil {
		log.Errorf("❌ Failed to answer button press: %v", err)
		return
	}
	b.metrics.CommandsProcessed.Inc()
}
