package alert

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gas-alert-bot/internal/metrics"
	"gas-alert-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval        = 2 * time.Minute
	DefaultMinInterval     = 30 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultPriceTimeout    = 3 * time.Second
)

// AlertStore is the part of the alert store the engine needs
type AlertStore interface {
	ListActiveChains(ctx context.Context) ([]types.Chain, error)
	ListOutstandingAlerts(ctx context.Context) ([]types.Alert, error)
	MarkNotified(ctx context.Context, alertID int64) error
}

type FeeOracle interface {
	Fetch(ctx context.Context, chain types.Chain) (types.FeeEstimate, error)
}

type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// PriceSource provides the USD price of a chain's native coin
type PriceSource interface {
	USDPrice(ctx context.Context, chain types.Chain) (float64, error)
}

// HistoryRecorder keeps successful fetches for charts
type HistoryRecorder interface {
	SaveFeeSnapshot(ctx context.Context, snap types.FeeSnapshot) error
	PruneFeeSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// Config of the engine
type Config struct {
	Interval    time.Duration
	MinInterval time.Duration
	// DeliveryTimeout bounds each Notifier.Send call
	DeliveryTimeout time.Duration
	// PriceTimeout bounds the USD price lookup; on expiry the notification
	// goes out without a transfer cost
	PriceTimeout        time.Duration
	MaxConcurrentChains int
	// HistoryRetention is how long fee snapshots are kept; zero keeps them forever
	HistoryRetention time.Duration
}

// Deps are the collaborators of the engine. Store, Oracle and Notifier are
// required.
type Deps struct {
	Store    AlertStore
	Oracle   FeeOracle
	Notifier Notifier
	Prices   PriceSource
	History  HistoryRecorder
	Metrics  *metrics.Metrics
	Logger   *log.Entry
}

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateEvaluating
	StateDelivering
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateEvaluating:
		return "evaluating"
	case StateDelivering:
		return "delivering"
	default:
		return "idle"
	}
}

// Engine periodically evaluates outstanding alerts against fresh fee
// estimates and notifies users. Delivery is at-least-once: an alert is only
// marked notified after Send succeeds, so a failed send or a failed mark is
// retried on the next tick.
type Engine struct {
	cfg      Config
	store    AlertStore
	oracle   FeeOracle
	notifier Notifier
	prices   PriceSource
	history  HistoryRecorder
	metrics  *metrics.Metrics
	log      *log.Entry

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Interval < cfg.MinInterval {
		return nil, &types.ConfigError{
			Key:    "poll_interval",
			Reason: "must be at least " + cfg.MinInterval.String() + " to respect the fee oracle rate limits, got " + cfg.Interval.String(),
		}
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = DefaultPriceTimeout
	}
	if cfg.MaxConcurrentChains <= 0 {
		cfg.MaxConcurrentChains = len(types.Chains())
	}

	if deps.Store == nil || deps.Oracle == nil || deps.Notifier == nil {
		return nil, errors.New("engine requires a store, a fee oracle and a notifier")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "engine")
	}

	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		oracle:   deps.Oracle,
		notifier: deps.Notifier,
		prices:   deps.Prices,
		history:  deps.History,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}, nil
}

// State reports how far the current tick has progressed. Chains run in
// parallel, so it is the furthest stage reached by any of them, and it only
// moves forward until the tick ends.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// advanceState moves the state forward to s, never back
func (e *Engine) advanceState(s State) {
	for {
		cur := e.state.Load()
		if cur >= int32(s) || e.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Start runs a tick immediately and then one per interval until ctx is done
// or Stop is called. Calling Start on a running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(runCtx)

	e.log.WithField("interval", e.cfg.Interval).Info("🚀 Alert engine started.")
}

// Stop prevents new ticks from starting and waits for the in-flight one
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()

	e.log.Info("Alert engine stopped.")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			e.Tick(ctx)
		}
	}
}

// ChainReport is the outcome of one chain's pipeline within a tick
type ChainReport struct {
	Chain      types.Chain
	Current    float64
	Err        error
	Fired      int
	Delivered  int
	Failed     int
	MarkFailed int
}

// Report summarizes a tick
type Report struct {
	TickID  string
	Skipped bool
	Err     error
	Chains  []ChainReport
}

// OracleCalls is the number of chains the oracle was asked about
func (r Report) OracleCalls() int {
	return len(r.Chains)
}

func (r Report) Delivered() int {
	n := 0
	for _, c := range r.Chains {
		n += c.Delivered
	}
	return n
}

// Tick runs one evaluation pass. Cancelling ctx does not interrupt the pass:
// network calls are bounded by their own timeouts instead, so no alert is
// left half-processed.
func (e *Engine) Tick(ctx context.Context) Report {
	ctx = context.WithoutCancel(ctx)
	report := Report{TickID: uuid.NewString()}
	logger := e.log.WithField("tick", report.TickID)

	start := time.Now()
	e.metrics.TicksTotal.Inc()
	defer func() {
		e.setState(StateIdle)
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	e.setState(StatePolling)
	logger.Debug("🔄 Checking alerts...")

	chains, err := e.store.ListActiveChains(ctx)
	if err != nil {
		e.metrics.StoreErrors.WithLabelValues("list_active_chains").Inc()
		logger.WithError(err).Error("❌ Failed to list active chains, retrying next tick")
		report.Err = err
		return report
	}

	if len(chains) == 0 {
		e.metrics.TicksSkipped.Inc()
		logger.Debug("💤 No outstanding alerts, skipping tick")
		report.Skipped = true
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.cfg.MaxConcurrentChains)

	for _, chain := range chains {
		chain := chain
		g.Go(func() error {
			res := e.processChain(ctx, logger.WithField("chain", chain), chain)
			mu.Lock()
			report.Chains = append(report.Chains, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Chains, func(i, j int) bool {
		return report.Chains[i].Chain < report.Chains[j].Chain
	})

	e.pruneHistory(ctx, logger)

	logger.WithFields(log.Fields{
		"chains":    len(chains),
		"delivered": report.Delivered(),
		"took":      time.Since(start),
	}).Info("✅ Alert check completed.")
	return report
}

// processChain fetches, evaluates and delivers for a single chain. Every
// failure stays inside this chain.
func (e *Engine) processChain(ctx context.Context, logger *log.Entry, chain types.Chain) (res ChainReport) {
	res.Chain = chain

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("stack", string(debug.Stack())).Errorf("🔥 Panic recovered in chain pipeline: %v", r)
			e.metrics.PanicsRecovered.WithLabelValues("chain_pipeline").Inc()
			res.Err = errors.Errorf("panic: %v", r)
		}
	}()

	estimate, err := e.oracle.Fetch(ctx, chain)
	result := types.FeeResult{Chain: chain, Estimate: estimate, Err: err, FetchedAt: time.Now()}
	if err != nil {
		e.metrics.OracleCalls.WithLabelValues(string(chain), oracleOutcome(err)).Inc()
		logger.WithError(err).Warn("⚠️ Fee oracle failed, skipping chain this tick")
		res.Err = err
		return res
	}
	e.metrics.OracleCalls.WithLabelValues(string(chain), "ok").Inc()
	res.Current = estimate.Current()
	e.recordSnapshot(ctx, logger, result)

	e.advanceState(StateEvaluating)
	alerts, err := e.store.ListOutstandingAlerts(ctx)
	if err != nil {
		e.metrics.StoreErrors.WithLabelValues("list_outstanding_alerts").Inc()
		logger.WithError(err).Error("❌ Failed to fetch outstanding alerts")
		res.Err = err
		return res
	}

	fire := Evaluate(alerts, result)
	res.Fired = len(fire)
	logger.Debugf("🔍 Current fee %.3f Gwei, %d of %d outstanding alerts fire", res.Current, len(fire), len(alerts))
	if len(fire) == 0 {
		return res
	}
	e.metrics.AlertsFired.WithLabelValues(string(chain)).Add(float64(len(fire)))

	e.advanceState(StateDelivering)
	usdPrice := e.usdPrice(ctx, logger, chain)
	for _, a := range fire {
		switch err := e.deliver(ctx, logger, a, res.Current, usdPrice); {
		case err == nil:
			res.Delivered++
		case errors.Is(err, types.ErrStoreUnavailable):
			res.Delivered++
			res.MarkFailed++
		default:
			res.Failed++
		}
	}
	return res
}

func (e *Engine) deliver(ctx context.Context, logger *log.Entry, a types.Alert, current, usdPrice float64) error {
	logger = logger.WithFields(log.Fields{"alert_id": a.ID, "chat_id": a.ChatID})

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	err := e.notifier.Send(sendCtx, a.ChatID, FormatNotification(a, current, usdPrice))
	cancel()
	if err != nil {
		e.metrics.NotificationsFailed.Inc()
		logger.WithError(err).Error("❌ Failed to send gas alert notification, will retry next tick")
		return err
	}
	e.metrics.NotificationsDelivered.Inc()

	if err := e.store.MarkNotified(ctx, a.ID); err != nil {
		e.metrics.StoreErrors.WithLabelValues("mark_notified").Inc()
		logger.WithError(err).Error("❌ Notification sent but alert could not be marked, it may be sent again")
		return err
	}

	logger.Info("✅ Gas alert notification sent")
	return nil
}

func (e *Engine) usdPrice(ctx context.Context, logger *log.Entry, chain types.Chain) float64 {
	if e.prices == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PriceTimeout)
	defer cancel()

	p, err := e.prices.USDPrice(ctx, chain)
	if err != nil {
		logger.WithError(err).Debug("No USD price, sending notification without transfer cost")
		return 0
	}
	return p
}

func (e *Engine) recordSnapshot(ctx context.Context, logger *log.Entry, result types.FeeResult) {
	if e.history == nil {
		return
	}
	err := e.history.SaveFeeSnapshot(ctx, types.FeeSnapshot{
		Chain:      result.Chain,
		Estimate:   result.Estimate,
		ObservedAt: result.FetchedAt,
	})
	if err != nil {
		logger.WithError(err).Warn("⚠️ Failed to record fee snapshot")
	}
}

func (e *Engine) pruneHistory(ctx context.Context, logger *log.Entry) {
	if e.history == nil || e.cfg.HistoryRetention <= 0 {
		return
	}
	n, err := e.history.PruneFeeSnapshots(ctx, time.Now().Add(-e.cfg.HistoryRetention))
	if err != nil {
		logger.WithError(err).Warn("⚠️ Failed to prune fee history")
		return
	}
	if n > 0 {
		logger.Debugf("Pruned %d fee snapshots", n)
	}
}

func oracleOutcome(err error) string {
	var oerr *types.OracleError
	if errors.As(err, &oerr) {
		return string(oerr.Kind)
	}
	return "error"
}
