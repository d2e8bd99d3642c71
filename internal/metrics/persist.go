package metrics

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

// Store persists counter values across restarts
type Store interface {
	SaveMetric(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
}

const labelSeparator = ","

type persistedCounter struct {
	name      string
	collector prometheus.Collector
	restore   func(labelKey, labelValue string, value float64)
}

func (m *Metrics) persisted() []persistedCounter {
	plain := func(c prometheus.Counter) func(string, string, float64) {
		return func(_, _ string, value float64) { c.Add(value) }
	}
	labeled := func(vec *prometheus.CounterVec) func(string, string, float64) {
		return func(_, labelValue string, value float64) {
			c, err := vec.GetMetricWithLabelValues(strings.Split(labelValue, labelSeparator)...)
			if err != nil {
				log.Warnf("⚠️ Skipping persisted series %q: %v", labelValue, err)
				return
			}
			c.Add(value)
		}
	}

	return []persistedCounter{
		{"ticks_total", m.TicksTotal, plain(m.TicksTotal)},
		{"ticks_skipped", m.TicksSkipped, plain(m.TicksSkipped)},
		{"notifications_delivered", m.NotificationsDelivered, plain(m.NotificationsDelivered)},
		{"notifications_failed", m.NotificationsFailed, plain(m.NotificationsFailed)},
		{"commands_processed", m.CommandsProcessed, plain(m.CommandsProcessed)},
		{"oracle_calls", m.OracleCalls, labeled(m.OracleCalls)},
		{"alerts_fired", m.AlertsFired, labeled(m.AlertsFired)},
	}
}

// Load adds the persisted totals onto the in-memory counters
func (m *Metrics) Load(ctx context.Context, store Store) error {
	for _, pc := range m.persisted() {
		series, err := store.GetMetricsWithLabels(ctx, pc.name)
		if err != nil {
			return err
		}
		for labelKey, values := range series {
			for labelValue, value := range values {
				pc.restore(labelKey, labelValue, value)
			}
		}
	}
	log.Debug("Metrics loaded from database.")
	return nil
}

// Save writes the current counter totals
func (m *Metrics) Save(ctx context.Context, store Store) error {
	for _, pc := range m.persisted() {
		for _, s := range collect(pc.collector) {
			if err := store.SaveMetric(ctx, pc.name, s.labelKey, s.labelValue, s.value); err != nil {
				return err
			}
		}
	}
	log.Debug("Metrics saved to database.")
	return nil
}

type sample struct {
	labelKey   string
	labelValue string
	value      float64
}

func collect(c prometheus.Collector) []sample {
	metricChan := make(chan prometheus.Metric)
	go func() {
		c.Collect(metricChan)
		close(metricChan)
	}()

	var samples []sample
	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("❌ Failed to read metric value: %v", err)
			continue
		}

		var keys, values []string
		for _, label := range metricProto.GetLabel() {
			keys = append(keys, label.GetName())
			values = append(values, label.GetValue())
		}

		var value float64
		if metricProto.Counter != nil {
			value = metricProto.Counter.GetValue()
		} else if metricProto.Gauge != nil {
			value = metricProto.Gauge.GetValue()
		}

		samples = append(samples, sample{
			labelKey:   strings.Join(keys, labelSeparator),
			labelValue: strings.Join(values, labelSeparator),
			value:      value,
		})
	}
	return samples
}
