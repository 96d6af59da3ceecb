package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default Store backend: a single-file SQLite database
// opened with WAL journaling, with a schema_version table gating idempotent
// CREATE TABLE IF NOT EXISTS statements. No query optimization beyond an
// index on trade_decisions by strategy and time and one on positions by
// strategy and status.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) path and runs migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	if version >= 1 {
		return nil
	}
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

		CREATE TABLE IF NOT EXISTS trade_decisions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy     TEXT NOT NULL,
			condition_id TEXT NOT NULL,
			token_id     TEXT NOT NULL,
			side         TEXT NOT NULL,
			edge         REAL NOT NULL,
			confidence   REAL NOT NULL,
			approved     INTEGER NOT NULL,
			reason       TEXT NOT NULL,
			order_type   TEXT NOT NULL,
			size_usd     REAL NOT NULL,
			fill_price   REAL NOT NULL,
			fill_shares  REAL NOT NULL,
			decided_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trade_decisions_strategy ON trade_decisions(strategy, decided_at);

		CREATE TABLE IF NOT EXISTS positions (
			strategy        TEXT NOT NULL,
			condition_id    TEXT NOT NULL,
			token_id        TEXT NOT NULL,
			side            TEXT NOT NULL,
			avg_entry_price REAL NOT NULL,
			size_shares     REAL NOT NULL,
			cost_basis      REAL NOT NULL,
			status          TEXT NOT NULL,
			realized_pnl    REAL NOT NULL,
			opened_at       TEXT NOT NULL,
			closed_at       TEXT,
			PRIMARY KEY (strategy, condition_id, token_id)
		);
		CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(strategy, status);

		CREATE TABLE IF NOT EXISTS strategy_balances (
			strategy        TEXT PRIMARY KEY,
			allocated_usd   REAL NOT NULL,
			available_usd   REAL NOT NULL,
			realized_pnl    REAL NOT NULL,
			trade_count     INTEGER NOT NULL,
			win_count       INTEGER NOT NULL,
			loss_count      INTEGER NOT NULL,
			high_water_mark REAL NOT NULL,
			snapshot_at     TEXT NOT NULL
		);

		INSERT INTO schema_version (version) VALUES (1);
	`)
	return err
}

func (s *SQLiteStore) AppendDecision(ctx context.Context, d DecisionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_decisions (
			strategy, condition_id, token_id, side, edge, confidence,
			approved, reason, order_type, size_usd, fill_price, fill_shares, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Strategy, d.ConditionID, d.TokenID, d.Side, d.Edge, d.Confidence,
		boolToInt(d.Approved), d.Reason, d.OrderType, d.SizeUSD, d.FillPrice, d.FillShares,
		d.Decided.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) RecentDecisions(ctx context.Context, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, condition_id, token_id, side, edge, confidence,
		       approved, reason, order_type, size_usd, fill_price, fill_shares, decided_at
		FROM trade_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		var approved int
		var decidedAt string
		if err := rows.Scan(&d.ID, &d.Strategy, &d.ConditionID, &d.TokenID, &d.Side, &d.Edge,
			&d.Confidence, &approved, &d.Reason, &d.OrderType, &d.SizeUSD, &d.FillPrice,
			&d.FillShares, &decidedAt); err != nil {
			return nil, err
		}
		d.Approved = approved != 0
		d.Decided, _ = time.Parse(time.RFC3339Nano, decidedAt)
		out = append(out, d)
	}
	reverse(out)
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertPosition(ctx context.Context, p PositionRecord) error {
	var closedAt any
	if !p.ClosedAt.IsZero() {
		closedAt = p.ClosedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			strategy, condition_id, token_id, side, avg_entry_price, size_shares,
			cost_basis, status, realized_pnl, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy, condition_id, token_id) DO UPDATE SET
			side = excluded.side,
			avg_entry_price = excluded.avg_entry_price,
			size_shares = excluded.size_shares,
			cost_basis = excluded.cost_basis,
			status = excluded.status,
			realized_pnl = excluded.realized_pnl,
			closed_at = excluded.closed_at`,
		p.Strategy, p.ConditionID, p.TokenID, p.Side, p.AvgEntryPrice, p.SizeShares,
		p.CostBasis, p.Status, p.RealizedPnL, p.OpenedAt.UTC().Format(time.RFC3339Nano), closedAt,
	)
	return err
}

func (s *SQLiteStore) OpenPositions(ctx context.Context) ([]PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy, condition_id, token_id, side, avg_entry_price, size_shares,
		       cost_basis, status, realized_pnl, opened_at, closed_at
		FROM positions WHERE status IN ('open', 'partial')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		var openedAt string
		var closedAt sql.NullString
		if err := rows.Scan(&p.Strategy, &p.ConditionID, &p.TokenID, &p.Side, &p.AvgEntryPrice,
			&p.SizeShares, &p.CostBasis, &p.Status, &p.RealizedPnL, &openedAt, &closedAt); err != nil {
			return nil, err
		}
		p.OpenedAt, _ = time.Parse(time.RFC3339Nano, openedAt)
		if closedAt.Valid {
			p.ClosedAt, _ = time.Parse(time.RFC3339Nano, closedAt.String)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveWalletSnapshot(ctx context.Context, w WalletRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_balances (
			strategy, allocated_usd, available_usd, realized_pnl,
			trade_count, win_count, loss_count, high_water_mark, snapshot_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy) DO UPDATE SET
			allocated_usd = excluded.allocated_usd,
			available_usd = excluded.available_usd,
			realized_pnl = excluded.realized_pnl,
			trade_count = excluded.trade_count,
			win_count = excluded.win_count,
			loss_count = excluded.loss_count,
			high_water_mark = excluded.high_water_mark,
			snapshot_at = excluded.snapshot_at`,
		w.Strategy, w.AllocatedUSD, w.AvailableUSD, w.RealizedPnL,
		w.TradeCount, w.WinCount, w.LossCount, w.HighWaterMark,
		w.SnapshotAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) LatestWalletSnapshot(ctx context.Context, strategy string) (WalletRecord, bool, error) {
	var w WalletRecord
	var snapshotAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, allocated_usd, available_usd, realized_pnl,
		       trade_count, win_count, loss_count, high_water_mark, snapshot_at
		FROM strategy_balances WHERE strategy = ?`, strategy,
	).Scan(&w.Strategy, &w.AllocatedUSD, &w.AvailableUSD, &w.RealizedPnL,
		&w.TradeCount, &w.WinCount, &w.LossCount, &w.HighWaterMark, &snapshotAt)
	if err == sql.ErrNoRows {
		return WalletRecord{}, false, nil
	}
	if err != nil {
		return WalletRecord{}, false, err
	}
	w.SnapshotAt, _ = time.Parse(time.RFC3339Nano, snapshotAt)
	return w, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func reverse(d []DecisionRecord) {
	for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
		d[i], d[j] = d[j], d[i]
	}
}
