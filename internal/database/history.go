package database

import (
	"context"
	"time"

	"gas-alert-bot/internal/types"
)

// SaveFeeSnapshot records a successful oracle fetch
func (s *Store) SaveFeeSnapshot(ctx context.Context, snap types.FeeSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fee_snapshots (chain, low, medium, high, observed_at) VALUES (?, ?, ?, ?, ?);`,
		string(snap.Chain), snap.Estimate.Low, snap.Estimate.Medium, snap.Estimate.High, snap.ObservedAt.Unix())
	return types.NewStoreError("save fee snapshot", err)
}

// ListFeeSnapshots returns the snapshots of a chain observed at or after since, oldest first
func (s *Store) ListFeeSnapshots(ctx context.Context, chain types.Chain, since time.Time) ([]types.FeeSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT low, medium, high, observed_at FROM fee_snapshots WHERE chain = ? AND observed_at >= ? ORDER BY observed_at;`,
		string(chain), since.Unix())
	if err != nil {
		return nil, types.NewStoreError("list fee snapshots", err)
	}
	defer rows.Close()

	var snaps []types.FeeSnapshot
	for rows.Next() {
		var (
			snap       = types.FeeSnapshot{Chain: chain}
			observedAt int64
		)
		if err := rows.Scan(&snap.Estimate.Low, &snap.Estimate.Medium, &snap.Estimate.High, &observedAt); err != nil {
			return nil, types.NewStoreError("list fee snapshots", err)
		}
		snap.ObservedAt = time.Unix(observedAt, 0).UTC()
		snaps = append(snaps, snap)
	}
	return snaps, types.NewStoreError("list fee snapshots", rows.Err())
}

// PruneFeeSnapshots deletes snapshots older than before and reports how many went
func (s *Store) PruneFeeSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fee_snapshots WHERE observed_at < ?;`, before.Unix())
	if err != nil {
		return 0, types.NewStoreError("prune fee snapshots", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
