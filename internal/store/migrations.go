package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id           TEXT PRIMARY KEY,
	vendor       TEXT NOT NULL,
	folder       TEXT NOT NULL,
	scanned      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	total        INTEGER NOT NULL DEFAULT 0,
	confirmed    INTEGER NOT NULL DEFAULT 0,
	shipped      INTEGER NOT NULL DEFAULT 0,
	delivered    INTEGER NOT NULL DEFAULT 0,
	cancelled    INTEGER NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	run_id          TEXT NOT NULL REFERENCES scrape_runs(id) ON DELETE CASCADE,
	order_number    TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'Unknown',
	products        TEXT NOT NULL DEFAULT '[]',
	tracking_number TEXT NOT NULL DEFAULT '',
	order_date      DATETIME,
	position        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, order_number)
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_vendor ON scrape_runs(vendor, started_at);
CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number);
`,
	},
}
