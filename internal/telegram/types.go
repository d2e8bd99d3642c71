package telegram

import (
	"context"
	"time"

	"gas-alert-bot/internal/metrics"
	"gas-alert-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	// RequestTimeout bounds every call to the Bot API made for chat commands
	RequestTimeout time.Duration
	// DeliveryTimeout bounds each alert notification
	DeliveryTimeout  time.Duration
	MaxAlertsPerChat int
	// ChartWindow is how much fee history /chart shows
	ChartWindow time.Duration
}

// AlertRepository is the store surface used by chat commands
type AlertRepository interface {
	InsertAlert(ctx context.Context, userID, chatID int64, chain types.Chain, threshold float64) (types.Alert, error)
	ListAlertsByChat(ctx context.Context, chatID int64) ([]types.Alert, error)
	DeleteAlert(ctx context.Context, chatID, alertID int64) error
	CountOutstandingByChat(ctx context.Context, chatID int64) (int, error)
	ListFeeSnapshots(ctx context.Context, chain types.Chain, since time.Time) ([]types.FeeSnapshot, error)
}

type FeeOracle interface {
	Fetch(ctx context.Context, chain types.Chain) (types.FeeEstimate, error)
}

// Bot telegram interaction client
type Bot struct {
	Bot    *tgbotapi.BotAPI
	Config BotConfig
	// notify sends alert notifications on its own short-timeout client, apart
	// from the long-poll one
	notify  *tgbotapi.BotAPI
	alerts  AlertRepository
	oracle  FeeOracle
	metrics *metrics.Metrics
}

// Message a telegram message struct. Photo, when set, is sent as an image
// with Text as its caption.
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *tgbotapi.InlineKeyboardMarkup
	Photo     []byte
}
