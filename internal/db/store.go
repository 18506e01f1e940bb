package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quarterhour/internal/bayes"
	"quarterhour/internal/signal"
)

// timeLayout is how timestamps are stored; lexicographic order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Trade is one persisted trade. Exit fields are zero until resolved.
type Trade struct {
	ID           string
	BotID        string
	SessionID    string
	MarketID     string
	Side         signal.Side
	Size         float64
	EntryPrice   float64
	ExitPrice    float64
	PnL          float64
	EntryTime    time.Time
	ExitTime     time.Time
	ExitReason   string
	ExitCategory string
	L1Evidence   signal.Evidence
	L2Evidence   signal.Evidence
	Won          bool
	Resolved     bool
}

// Session is one bot run.
type Session struct {
	ID              string
	BotID           string
	StartedAt       time.Time
	EndedAt         time.Time
	StartingBalance float64
	EndingBalance   float64
	Ended           bool
}

// AuditRecord is one per-tick composite-signal observation.
type AuditRecord struct {
	BotID    string
	MarketID string
	Signal   signal.Composite
}

// Store wraps the SQLite handle with the queries the engine needs. It
// implements bayes.Store.
type Store struct {
	sqlDB *sql.DB
}

func NewStore(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Likelihood loads the outcome counters for one evidence pair.
func (s *Store) Likelihood(botID string, l1, l2 signal.Evidence) (bayes.LikelihoodRow, bool, error) {
	row := bayes.LikelihoodRow{L1: l1, L2: l2}
	err := s.sqlDB.QueryRow(
		`SELECT wins, losses, total FROM likelihood WHERE bot_id=? AND l1_evidence=? AND l2_evidence=?`,
		botID, l1.String(), l2.String(),
	).Scan(&row.Wins, &row.Losses, &row.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return bayes.LikelihoodRow{}, false, nil
	}
	if err != nil {
		return bayes.LikelihoodRow{}, false, fmt.Errorf("querying likelihood: %w", err)
	}
	return row, true, nil
}

// RecordOutcome upserts the counters for an evidence pair.
func (s *Store) RecordOutcome(botID string, l1, l2 signal.Evidence, won bool) error {
	win, loss := 0, 1
	if won {
		win, loss = 1, 0
	}
	_, err := s.sqlDB.Exec(`
		INSERT INTO likelihood (bot_id, l1_evidence, l2_evidence, wins, losses, total)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(bot_id, l1_evidence, l2_evidence) DO UPDATE SET
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			total = total + 1`,
		botID, l1.String(), l2.String(), win, loss)
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

// RecentOutcomes counts wins over the bot's last `window` resolved trades.
func (s *Store) RecentOutcomes(botID string, window int) (wins, total int, err error) {
	err = s.sqlDB.QueryRow(`
		SELECT COALESCE(SUM(won), 0), COUNT(*)
		FROM (
			SELECT won FROM trades
			WHERE bot_id=? AND resolved=1
			ORDER BY exit_time DESC LIMIT ?
		)`, botID, window).Scan(&wins, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("querying recent outcomes: %w", err)
	}
	return wins, total, nil
}

// EvidenceTableSize reports how many evidence pairs have observations.
func (s *Store) EvidenceTableSize(botID string) (int, error) {
	var n int
	err := s.sqlDB.QueryRow(`SELECT COUNT(*) FROM likelihood WHERE bot_id=?`, botID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting likelihood rows: %w", err)
	}
	return n, nil
}

// CreateSession records the start of a bot run.
func (s *Store) CreateSession(sess Session) error {
	_, err := s.sqlDB.Exec(`
		INSERT INTO sessions (id, bot_id, started_at, starting_balance)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.BotID, sess.StartedAt.UTC().Format(timeLayout), sess.StartingBalance)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// EndSession stamps a session's end time and final balance.
func (s *Store) EndSession(id string, endedAt time.Time, endingBalance float64) error {
	_, err := s.sqlDB.Exec(`UPDATE sessions SET ended_at=?, ending_balance=? WHERE id=?`,
		endedAt.UTC().Format(timeLayout), endingBalance, id)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// InsertTrade persists a newly opened trade.
func (s *Store) InsertTrade(t Trade) error {
	_, err := s.sqlDB.Exec(`
		INSERT INTO trades (id, bot_id, session_id, market_id, side, size, entry_price,
			entry_time, l1_evidence, l2_evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BotID, t.SessionID, t.MarketID, t.Side.String(), t.Size, t.EntryPrice,
		t.EntryTime.UTC().Format(timeLayout), t.L1Evidence.String(), t.L2Evidence.String())
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	return nil
}

// ResolveTrade marks a trade closed with its outcome.
func (s *Store) ResolveTrade(id string, exitPrice, pnl float64, reason, category string, won bool, exitTime time.Time) error {
	wonInt := 0
	if won {
		wonInt = 1
	}
	res, err := s.sqlDB.Exec(`
		UPDATE trades SET exit_price=?, pnl=?, exit_reason=?, exit_category=?, won=?,
			exit_time=?, resolved=1
		WHERE id=? AND resolved=0`,
		exitPrice, pnl, reason, category, wonInt, exitTime.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("resolving trade: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("resolving trade %s: not found or already resolved", id)
	}
	return nil
}

// Trades returns the bot's most recent trades, newest first.
func (s *Store) Trades(botID string, limit int) ([]Trade, error) {
	rows, err := s.sqlDB.Query(`
		SELECT id, bot_id, session_id, market_id, side, size, entry_price,
			COALESCE(exit_price, 0), COALESCE(pnl, 0), entry_time,
			COALESCE(exit_time, ''), COALESCE(exit_reason, ''),
			COALESCE(exit_category, ''), l1_evidence, l2_evidence,
			COALESCE(won, 0), resolved
		FROM trades WHERE bot_id=?
		ORDER BY entry_time DESC LIMIT ?`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var (
			t                    Trade
			side, l1, l2         string
			entryTime, exitTime  string
			wonInt, resolvedInt  int
		)
		if err := rows.Scan(&t.ID, &t.BotID, &t.SessionID, &t.MarketID, &side, &t.Size,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &entryTime, &exitTime,
			&t.ExitReason, &t.ExitCategory, &l1, &l2, &wonInt, &resolvedInt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = signal.ParseSide(side)
		t.L1Evidence = signal.ParseEvidence(l1)
		t.L2Evidence = signal.ParseEvidence(l2)
		t.Won = wonInt == 1
		t.Resolved = resolvedInt == 1
		if t.EntryTime, err = time.Parse(timeLayout, entryTime); err != nil {
			return nil, fmt.Errorf("parsing entry time: %w", err)
		}
		if exitTime != "" {
			if t.ExitTime, err = time.Parse(timeLayout, exitTime); err != nil {
				return nil, fmt.Errorf("parsing exit time: %w", err)
			}
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertAudit appends one tick's composite signal to the audit trail.
func (s *Store) InsertAudit(rec AuditRecord, now time.Time) error {
	sig := rec.Signal
	shouldTrade, fallback := 0, 0
	if sig.ShouldTrade {
		shouldTrade = 1
	}
	if sig.BayesFallback {
		fallback = 1
	}
	_, err := s.sqlDB.Exec(`
		INSERT INTO signal_audit (bot_id, market_id, observed_at, score, confidence,
			l1_direction, l2_direction, vwap_signal, vroc, l1_evidence, l2_evidence,
			recommended_side, should_trade, bayes_posterior, bayes_fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BotID, rec.MarketID, now.UTC().Format(timeLayout), sig.Score, sig.Confidence,
		sig.Layer1.Direction, sig.Layer2.Direction, sig.VWAPSignal, sig.VROCValue,
		sig.L1Evidence.String(), sig.L2Evidence.String(),
		sig.RecommendedSide.String(), shouldTrade, sig.BayesPosterior, fallback)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}
