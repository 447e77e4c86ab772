package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores one row per trade and per equity timestamp. Recording the
// same trade or timestamp again replaces the row, so syncing is repeatable.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(trade_id, ticker, direction, quantity, entry_price, exit_price, open_time, close_time,
		 realized_pl, pnl_percent, r_multiple, duration_days, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Ticker, t.Direction, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.OpenTime.UTC(), t.CloseTime.UTC(),
		t.RealizedPL, t.PnLPercent, t.RMultiple, t.DurationDays, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO equity
		(time, cash, equity, market_value, positions, open_orders)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Cash, e.Equity, e.MarketValue, e.Positions, e.OpenOrders,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
