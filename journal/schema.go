package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	pnl_percent REAL NOT NULL,
	r_multiple REAL NOT NULL,
	duration_days INTEGER NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME PRIMARY KEY,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	market_value REAL NOT NULL,
	positions INTEGER NOT NULL,
	open_orders INTEGER NOT NULL
);
`
