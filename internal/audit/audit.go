package audit

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tradeagent/internal/ledger"
)

// #endregion imports

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id    TEXT NOT NULL,
	action_kind TEXT NOT NULL,
	target      TEXT,
	confidence  REAL NOT NULL,
	allow       INTEGER NOT NULL,
	rule        TEXT NOT NULL,
	reason      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	tx_id      TEXT PRIMARY KEY,
	cycle_id   TEXT,
	kind       TEXT NOT NULL,
	target     TEXT,
	amount_sol REAL,
	amount_usd REAL,
	price_usd  REAL,
	chain      TEXT,
	signature  TEXT,
	error      TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS promotions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id    TEXT,
	path        TEXT NOT NULL,
	verified    INTEGER NOT NULL,
	stage       TEXT NOT NULL,
	reference   TEXT,
	diagnostic  TEXT,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region log

// Log is the append-only audit archive. The ledger document keeps bounded
// histories; this database keeps everything. There are deliberately no
// UPDATE or DELETE statements in this package.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// #endregion log

// #region decisions

// DecisionEntry is one policy-gate outcome.
type DecisionEntry struct {
	CycleID    string
	ActionKind string
	Target     string
	Confidence float64
	Allow      bool
	Rule       string
	Reason     string
	CreatedAt  time.Time
}

// RecordDecision appends a policy decision.
func (l *Log) RecordDecision(entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO decisions (cycle_id, action_kind, target, confidence, allow, rule, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CycleID, entry.ActionKind, nullIfEmpty(entry.Target), entry.Confidence,
		boolInt(entry.Allow), entry.Rule, entry.Reason,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest n decisions, newest first.
func (l *Log) RecentDecisions(n int) ([]DecisionEntry, error) {
	rows, err := l.db.Query(
		`SELECT cycle_id, action_kind, COALESCE(target, ''), confidence, allow, rule, reason, created_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var allow int
		var created string
		if err := rows.Scan(&e.CycleID, &e.ActionKind, &e.Target, &e.Confidence,
			&allow, &e.Rule, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Allow = allow != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion decisions

// #region transactions

// RecordTransaction mirrors a ledger transaction record into the archive.
func (l *Log) RecordTransaction(cycleID string, rec ledger.TransactionRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO transactions (tx_id, cycle_id, kind, target, amount_sol, amount_usd, price_usd, chain, signature, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullIfEmpty(cycleID), rec.Kind, nullIfEmpty(rec.Target),
		rec.AmountSOL, rec.AmountUSD, rec.PriceUSD, nullIfEmpty(rec.Chain),
		nullIfEmpty(rec.Signature), nullIfEmpty(rec.Error),
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transaction %s: %w", rec.ID, err)
	}
	return nil
}

// ArchiveTransactions satisfies ledger.Archiver: records pruned from the
// bounded document land here before being dropped. Records already mirrored
// at commit time dedupe on tx_id.
func (l *Log) ArchiveTransactions(recs []ledger.TransactionRecord) error {
	for _, rec := range recs {
		if err := l.RecordTransaction("", rec); err != nil {
			return err
		}
	}
	return nil
}

// TransactionCount returns the number of archived transactions.
func (l *Log) TransactionCount() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// #endregion transactions

// #region promotions

// PromotionEntry records one sandbox pipeline terminal state.
type PromotionEntry struct {
	CycleID    string
	Path       string
	Verified   bool
	Stage      string // "promoted" | "rolled_back" | "rejected"
	Reference  string // publish reference when promoted
	Diagnostic string
	CreatedAt  time.Time
}

// RecordPromotion appends a sandbox outcome. Every promoted patch has a
// corresponding row with verified=1.
func (l *Log) RecordPromotion(entry PromotionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO promotions (cycle_id, path, verified, stage, reference, diagnostic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.CycleID), entry.Path, boolInt(entry.Verified), entry.Stage,
		nullIfEmpty(entry.Reference), nullIfEmpty(entry.Diagnostic),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record promotion: %w", err)
	}
	return nil
}

// #endregion promotions

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
