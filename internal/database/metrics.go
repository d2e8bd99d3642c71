package database

import (
	"context"

	"gas-alert-bot/internal/types"

	log "github.com/sirupsen/logrus"
)

func (s *Store) SaveMetric(ctx context.Context, metricName, labelKey, labelValue string, value float64) error {
	query := `
	INSERT OR REPLACE INTO metrics (metric_name, label_key, label_value, metric_value)
	VALUES (?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, query, metricName, labelKey, labelValue, value)
	if err != nil {
		return types.NewStoreError("save metric", err)
	}
	log.Debugf("Metric saved: %s[%s=%s] = %f", metricName, labelKey, labelValue, value)
	return nil
}

// GetMetricsWithLabels fetches every stored series of a metric keyed by
// label key, then label value. Unlabeled metrics use empty strings.
func (s *Store) GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error) {
	query := `
	SELECT label_key, label_value, metric_value
	FROM metrics
	WHERE metric_name = ?;`

	rows, err := s.db.QueryContext(ctx, query, metricName)
	if err != nil {
		return nil, types.NewStoreError("get metrics with labels", err)
	}
	defer rows.Close()

	metrics := make(map[string]map[string]float64)
	for rows.Next() {
		var labelKey, labelValue string
		var value float64
		if err := rows.Scan(&labelKey, &labelValue, &value); err != nil {
			return nil, types.NewStoreError("get metrics with labels", err)
		}

		if _, exists := metrics[labelKey]; !exists {
			metrics[labelKey] = make(map[string]float64)
		}
		metrics[labelKey][labelValue] = value
	}
	return metrics, types.NewStoreError("get metrics with labels", rows.Err())
}
