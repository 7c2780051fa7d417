package ledger

// #region imports
import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeagent/internal/config"
)

// #endregion imports

// #region errors

// ErrCorrupt marks an unparsable persisted document. The only recoverable
// response is operator intervention; callers abort the cycle before any
// action is attempted.
var ErrCorrupt = errors.New("ledger: persisted state is corrupt")

// #endregion errors

// #region store

// Archiver receives transaction records before they are pruned from the
// bounded document history, so audit history is never silently lost.
type Archiver interface {
	ArchiveTransactions(recs []TransactionRecord) error
}

// Store is the single source of truth for the ledger document. All reads go
// to disk; no in-process cache exists, so a snapshot taken immediately
// before a policy check cannot be stale within the process.
type Store struct {
	path     string
	limits   config.Memory
	archiver Archiver
	now      func() time.Time
}

// NewStore creates a store over path with the given history limits.
func NewStore(path string, limits config.Memory) *Store {
	return &Store{path: path, limits: limits, now: time.Now}
}

// SetArchiver installs the pruning archiver. May be nil (records are then
// dropped at the cap, logged by the caller).
func (s *Store) SetArchiver(a Archiver) {
	s.archiver = a
}

// #endregion store

// #region load

// Load reads the full document from disk. A missing file yields defaults;
// an unparsable file yields ErrCorrupt.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultDocument(), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if doc.Positions == nil {
		doc.Positions = map[string]Position{}
	}
	return doc, nil
}

// Snapshot reads the document and returns the policy view for today.
// A stale daily_spend_date reports zero spend with ResetPending set; the
// reset itself is not persisted here — it lands inside the same Commit as
// the cycle's spend record, so a reset can never exist without its cycle.
func (s *Store) Snapshot() (Snapshot, error) {
	doc, err := s.Load()
	if err != nil {
		return Snapshot{}, err
	}
	today := s.today()
	snap := Snapshot{
		DailySpendSOL: doc.DailySpendSOL,
		Date:          today,
		Balances:      make(map[string]float64, len(doc.Positions)),
	}
	if doc.DailySpendDate != today {
		snap.DailySpendSOL = 0
		snap.ResetPending = true
	}
	for token, pos := range doc.Positions {
		snap.Balances[token] = pos.Amount
	}
	return snap, nil
}

// #endregion load

// #region commit

// Commit performs the read-modify-write protocol: load the full persisted
// document, apply any pending daily reset, apply mutate, prune bounded
// histories, then atomically replace the file. A reader observes either the
// fully-old or fully-new document.
func (s *Store) Commit(mutate func(doc *Document)) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	today := s.today()
	if doc.DailySpendDate != today {
		doc.DailySpendSOL = 0
		doc.DailySpendDate = today
	}
	mutate(&doc)
	if err := s.prune(&doc); err != nil {
		return err
	}
	return s.save(doc)
}

// save serializes doc to a temp file in the same directory, syncs it, and
// renames it over the target. An interrupted write leaves the prior file
// untouched.
func (s *Store) save(doc Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// prune bounds the histories, oldest entries first. Pruned transactions go
// to the archiver before being dropped.
func (s *Store) prune(doc *Document) error {
	if n := s.limits.MaxTransactions; n > 0 && len(doc.TransactionLog) > n {
		dropped := doc.TransactionLog[:len(doc.TransactionLog)-n]
		if s.archiver != nil {
			if err := s.archiver.ArchiveTransactions(dropped); err != nil {
				return fmt.Errorf("archive pruned transactions: %w", err)
			}
		}
		doc.TransactionLog = append([]TransactionRecord(nil), doc.TransactionLog[len(doc.TransactionLog)-n:]...)
	}
	if n := s.limits.MaxReflections; n > 0 && len(doc.Reflections) > n {
		doc.Reflections = append([]Reflection(nil), doc.Reflections[len(doc.Reflections)-n:]...)
	}
	if n := s.limits.MaxDriftRecords; n > 0 && len(doc.DriftRecords) > n {
		doc.DriftRecords = append([]DriftRecord(nil), doc.DriftRecords[len(doc.DriftRecords)-n:]...)
	}
	return nil
}

// #endregion commit

// #region queries

// RecentTransactions returns the newest n records, newest first.
func (s *Store) RecentTransactions(n int) ([]TransactionRecord, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	log := doc.TransactionLog
	if len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]TransactionRecord, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// UnresolvedDrift returns drift records not yet marked resolved.
func (s *Store) UnresolvedDrift() ([]DriftRecord, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	var out []DriftRecord
	for _, d := range doc.DriftRecords {
		if !d.Resolved {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// #endregion queries
