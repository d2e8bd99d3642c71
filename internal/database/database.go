package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gas-alert-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store is the durable record of alerts, fee history and persisted metrics.
// sqlite allows one writer at a time, so the pool is pinned to a single
// connection: creating, deleting and flipping notified are serialized.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.NewStoreError("open", errors.Wrap(err, "failed to connect to database"))
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	chainList := make([]string, 0, len(types.Chains()))
	for _, c := range types.Chains() {
		chainList = append(chainList, "'"+string(c)+"'")
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			chat_id INTEGER NOT NULL,
			chain TEXT NOT NULL CHECK (chain IN (%s)),
			threshold REAL NOT NULL CHECK (threshold > 0),
			notified INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`, strings.Join(chainList, ", ")),
		`CREATE INDEX IF NOT EXISTS idx_alerts_outstanding ON alerts (notified, chain);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_chat ON alerts (chat_id);`,
		`
		CREATE TABLE IF NOT EXISTS fee_snapshots (
			chain TEXT NOT NULL,
			low REAL NOT NULL,
			medium REAL NOT NULL,
			high REAL NOT NULL,
			observed_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fee_snapshots_chain ON fee_snapshots (chain, observed_at);`,
		`
		CREATE TABLE IF NOT EXISTS metrics (
			metric_name TEXT NOT NULL,
			label_key TEXT NOT NULL DEFAULT '',
			label_value TEXT NOT NULL DEFAULT '',
			metric_value REAL NOT NULL,
			PRIMARY KEY (metric_name, label_key, label_value)
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return types.NewStoreError("migrate", errors.Wrap(err, "failed to create schema"))
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
