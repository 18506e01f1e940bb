package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    bot_id TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    starting_balance REAL NOT NULL DEFAULT 0,
    ending_balance REAL
);
CREATE INDEX IF NOT EXISTS idx_sessions_bot ON sessions(bot_id);

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    bot_id TEXT NOT NULL,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    market_id TEXT NOT NULL,
    side TEXT NOT NULL,
    size REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL,
    pnl REAL,
    entry_time TEXT NOT NULL,
    exit_time TEXT,
    exit_reason TEXT,
    exit_category TEXT,
    l1_evidence TEXT NOT NULL,
    l2_evidence TEXT NOT NULL,
    won INTEGER,
    resolved INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_trades_bot_resolved ON trades(bot_id, resolved, exit_time);
CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_id);

CREATE TABLE IF NOT EXISTS likelihood (
    bot_id TEXT NOT NULL,
    l1_evidence TEXT NOT NULL,
    l2_evidence TEXT NOT NULL,
    wins INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    total INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (bot_id, l1_evidence, l2_evidence)
);

CREATE TABLE IF NOT EXISTS signal_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id TEXT NOT NULL,
    market_id TEXT NOT NULL,
    observed_at TEXT NOT NULL,
    score REAL NOT NULL,
    confidence REAL NOT NULL,
    l1_direction REAL NOT NULL,
    l2_direction REAL NOT NULL,
    vwap_signal REAL NOT NULL,
    vroc REAL NOT NULL,
    l1_evidence TEXT NOT NULL,
    l2_evidence TEXT NOT NULL,
    recommended_side TEXT NOT NULL,
    should_trade INTEGER NOT NULL,
    bayes_posterior REAL NOT NULL,
    bayes_fallback INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_bot_time ON signal_audit(bot_id, observed_at);
`
