package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gas-alert-bot/config"
	"gas-alert-bot/internal/alert"
	"gas-alert-bot/internal/database"
	"gas-alert-bot/internal/gas"
	"gas-alert-bot/internal/metrics"
	"gas-alert-bot/internal/price"
	"gas-alert-bot/internal/telegram"
	"gas-alert-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const metricsSaveInterval = 5 * time.Minute

func main() {
	once := flag.Bool("once", false, "run a single evaluation pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	setupLogging(cfg)
	translation.Configure(cfg.LocalesDir, cfg.Lang)
	log.Debugf("Using language %s", translation.GetLanguage())

	store, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	if err := m.Load(context.Background(), store); err != nil {
		log.Warnf("⚠️ Failed to restore metrics: %v", err)
	}

	oracle := gas.NewClient(gas.ClientConfig{
		Endpoint:      cfg.EtherscanEndpoint,
		APIKey:        cfg.EtherscanAPIKey,
		Timeout:       cfg.OracleTimeout,
		RatePerSecond: cfg.OracleRateLimit,
	})

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:            cfg.TelegramBotToken,
		Debug:            cfg.Debug,
		UpdatesTimeout:   60,
		DeliveryTimeout:  cfg.DeliveryTimeout,
		MaxAlertsPerChat: cfg.MaxAlertsPerChat,
	}, store, oracle, m)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	engine, err := alert.NewEngine(alert.Config{
		Interval:            cfg.PollInterval,
		MinInterval:         cfg.MinPollInterval,
		DeliveryTimeout:     cfg.DeliveryTimeout,
		PriceTimeout:        cfg.PriceTimeout,
		MaxConcurrentChains: cfg.MaxConcurrentChains,
		HistoryRetention:    cfg.HistoryRetention,
	}, alert.Deps{
		Store:    store,
		Oracle:   oracle,
		Notifier: bot,
		Prices:   price.NewTracker(cfg.APIProKey, cfg.PriceTimeout),
		History:  store,
		Metrics:  m,
	})
	if err != nil {
		log.Fatalf("Failed to create alert engine: %v", err)
	}

	if *once {
		report := engine.Tick(context.Background())
		saveMetrics(m, store)
		if report.Err != nil {
			log.Fatalf("Evaluation pass failed: %v", report.Err)
		}
		log.Infof("✅ Evaluation pass done: %d chains polled, %d notifications sent", report.OracleCalls(), report.Delivered())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Start(ctx)

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}
	go handleUpdates(ctx, bot, m, updates)

	go func() {
		ticker := time.NewTicker(metricsSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				saveMetrics(m, store)
			}
		}
	}()

	go func() {
		if err := launchMetricsAndHealthServer(cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")
	bot.StopReceivingUpdates()
	cancel()
	engine.Stop()
	saveMetrics(m, store)
	log.Info("Metrics saved, bye.")
}

func setupLogging(cfg *config.Config) {
	log.SetLevel(log.ErrorLevel)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warnf("⚠️ Ignoring log_level %q: %v", cfg.LogLevel, err)
		} else {
			log.SetLevel(level)
		}
	}
	log.Debug("Starting gas alert bot...")
}

func saveMetrics(m *metrics.Metrics, store *database.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Save(ctx, store); err != nil {
		log.Errorf("❌ Failed to save metrics: %v", err)
	}
}

func handleUpdates(ctx context.Context, bot *telegram.Bot, m *metrics.Metrics, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.CallbackQuery != nil {
			handleSafely(m, func() { bot.HandleCallbackQuery(ctx, update.CallbackQuery) })
			continue
		}

		if update.Message == nil || !update.Message.IsCommand() {
			log.Debug("Received non-message or non-command")
			continue
		}

		handleSafely(m, func() { handleCommand(ctx, bot, m, update) })
	}
}

func handleCommand(ctx context.Context, bot *telegram.Bot, m *metrics.Metrics, update tgbotapi.Update) {
	if err := bot.SendMessage(bot.HandleUpdate(ctx, update)); err != nil {
		log.Errorf("Failed to send message: %v", err)
		return
	}
	m.CommandsProcessed.Inc()
}

func handleSafely(m *metrics.Metrics, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
			m.PanicsRecovered.WithLabelValues("telegram").Inc()
		}
	}()
	fn()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}
