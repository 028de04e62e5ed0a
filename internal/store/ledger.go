package store

import (
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// Ledger is the persisted verified/pending partition of all known sample
// identifiers. Invariant after reconciliation: every identifier from the live
// listing appears in exactly one of the two lists, and nothing else does.
type Ledger struct {
	Verified []string `json:"verified"`
	Pending  []string `json:"pending"`
}

// Stats summarizes verification progress.
type Stats struct {
	Total    int
	Verified int
	Pending  int
	Percent  float64
}

func (l *Ledger) IsVerified(id string) bool {
	for _, v := range l.Verified {
		if v == id {
			return true
		}
	}
	return false
}

// MarkVerified moves id from pending to verified. Idempotent.
func (l *Ledger) MarkVerified(id string) {
	l.Pending = remove(l.Pending, id)
	if !l.IsVerified(id) {
		l.Verified = append(l.Verified, id)
	}
}

// MarkPending moves id from verified to pending. Idempotent.
func (l *Ledger) MarkPending(id string) {
	l.Verified = remove(l.Verified, id)
	if !contains(l.Pending, id) {
		l.Pending = append(l.Pending, id)
	}
}

func (l *Ledger) Stats() Stats {
	st := Stats{
		Verified: len(l.Verified),
		Pending:  len(l.Pending),
	}
	st.Total = st.Verified + st.Pending
	if st.Total > 0 {
		st.Percent = float64(st.Verified) / float64(st.Total) * 100
	}
	return st
}

// reconcile restricts the ledger to the given listing: identifiers no longer
// on disk are dropped, new ones are appended to pending.
func (l *Ledger) reconcile(listing []string) {
	known := make(map[string]bool, len(listing))
	for _, id := range listing {
		known[id] = true
	}

	var verified []string
	for _, id := range l.Verified {
		if known[id] {
			verified = append(verified, id)
		}
	}
	l.Verified = verified

	seen := make(map[string]bool, len(verified))
	for _, id := range verified {
		seen[id] = true
	}
	var pending []string
	for _, id := range listing {
		if !seen[id] {
			pending = append(pending, id)
		}
	}
	l.Pending = pending
}

// LoadLedger reads the ledger document and reconciles it against the live
// listing. A missing or corrupt ledger initializes to all-pending.
func (s *Store) LoadLedger() (*Ledger, error) {
	listing, err := s.List()
	if err != nil {
		return nil, err
	}

	ledger := &Ledger{}
	path := s.fs.Join(s.outputDir, ledgerFile)
	if data, err := util.ReadFile(s.fs, path); err == nil {
		if err := oj.Unmarshal(data, ledger); err != nil {
			ledger = &Ledger{}
		}
	}
	ledger.reconcile(listing)
	return ledger, nil
}

// SaveLedger persists the ledger document.
func (s *Store) SaveLedger(l *Ledger) error {
	if err := s.fs.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.outputDir, err)
	}
	data, err := oj.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	path := s.fs.Join(s.outputDir, ledgerFile)
	if err := util.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
