package database

import (
	"context"
	"database/sql"
	"math"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const alertColumns = `id, user_id, chat_id, chain, threshold, notified, created_at`

// InsertAlert saves a new outstanding alert and returns it with its id
func (s *Store) InsertAlert(ctx context.Context, userID, chatID int64, chain types.Chain, threshold float64) (types.Alert, error) {
	if !chain.Valid() {
		return types.Alert{}, errors.Errorf("unsupported chain: %q", chain)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return types.Alert{}, errors.Errorf("threshold must be a positive number, got %v", threshold)
	}

	createdAt := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (user_id, chat_id, chain, threshold, notified, created_at) VALUES (?, ?, ?, ?, 0, ?);`,
		userID, chatID, string(chain), threshold, createdAt.Unix())
	if err != nil {
		return types.Alert{}, types.NewStoreError("insert alert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return types.Alert{}, types.NewStoreError("insert alert", err)
	}

	log.Debugf("Alert inserted: ID: %d, ChatID: %d, Chain: %s, Threshold: %f", id, chatID, chain, threshold)
	return types.Alert{
		ID:        id,
		UserID:    userID,
		ChatID:    chatID,
		Chain:     chain,
		Threshold: threshold,
		CreatedAt: createdAt,
	}, nil
}

// ListActiveChains returns the distinct chains that have outstanding alerts
func (s *Store) ListActiveChains(ctx context.Context) ([]types.Chain, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT chain FROM alerts WHERE notified = 0 ORDER BY chain;`)
	if err != nil {
		return nil, types.NewStoreError("list active chains", err)
	}
	defer rows.Close()

	chains := []types.Chain{}
	for rows.Next() {
		var chain string
		if err := rows.Scan(&chain); err != nil {
			return nil, types.NewStoreError("list active chains", err)
		}
		chains = append(chains, types.Chain(chain))
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStoreError("list active chains", err)
	}
	return chains, nil
}

// ListOutstandingAlerts returns every alert not yet notified, ascending by id
func (s *Store) ListOutstandingAlerts(ctx context.Context) ([]types.Alert, error) {
	alerts, err := s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE notified = 0 ORDER BY id;`)
	return alerts, types.NewStoreError("list outstanding alerts", err)
}

// ListAlertsByChat returns all alerts of a chat, notified ones included
func (s *Store) ListAlertsByChat(ctx context.Context, chatID int64) ([]types.Alert, error) {
	alerts, err := s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE chat_id = ? ORDER BY id;`, chatID)
	return alerts, types.NewStoreError("list alerts by chat", err)
}

// CountOutstandingByChat is used to cap how many alerts a chat may hold
func (s *Store) CountOutstandingByChat(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE chat_id = ? AND notified = 0;`, chatID).Scan(&n)
	if err != nil {
		return 0, types.NewStoreError("count alerts", err)
	}
	return n, nil
}

// MarkNotified flips notified to true. Already-notified alerts are left
// untouched and no error is returned.
func (s *Store) MarkNotified(ctx context.Context, alertID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET notified = 1 WHERE id = ? AND notified = 0;`, alertID)
	if err != nil {
		return types.NewStoreError("mark notified", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debugf("Alert %d already notified or deleted", alertID)
	}
	return nil
}

// DeleteAlert removes an alert owned by chatID
func (s *Store) DeleteAlert(ctx context.Context, chatID, alertID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND chat_id = ?;`, alertID, chatID)
	if err != nil {
		return types.NewStoreError("delete alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.NewStoreError("delete alert", err)
	}
	if n == 0 {
		return types.ErrAlertNotFound
	}
	return nil
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query alerts")
	}
	defer rows.Close()

	alerts := []types.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(rows *sql.Rows) (types.Alert, error) {
	var (
		alert     types.Alert
		chain     string
		createdAt int64
	)
	if err := rows.Scan(&alert.ID, &alert.UserID, &alert.ChatID, &chain, &alert.Threshold, &alert.Notified, &createdAt); err != nil {
		return types.Alert{}, errors.Wrap(err, "failed to scan row")
	}
	alert.Chain = types.Chain(chain)
	alert.CreatedAt = time.Unix(createdAt, 0).UTC()
	return alert, nil
}
