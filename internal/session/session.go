// Package session implements the stateful edit controller for an annotation
// review session: the current selection, the in-memory working copy, the
// one-level undo buffer, and all verification decisions. Presentation layers
// (TUI, MCP tools) drive it one command at a time; it owns all mutable state.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roadsight/vannot/internal/schema"
	"github.com/roadsight/vannot/internal/store"
	"github.com/roadsight/vannot/internal/validate"
)

// State errors: the operation is invalid in the current context and state is
// left unchanged. I/O problems are folded into status messages instead; no
// error here is fatal to the session.
var (
	ErrNoSelection   = errors.New("no sample selected")
	ErrOutOfRange    = errors.New("sample index out of range")
	ErrNothingToSave = errors.New("nothing to save")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNotVerified   = errors.New("sample is not in the verified list")
	ErrProtectedKey  = errors.New("cannot remove essential metadata")
)

// FilterMode selects which ledger partition the active record list shows.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterVerified
	FilterPending
)

func (m FilterMode) String() string {
	switch m {
	case FilterVerified:
		return "verified"
	case FilterPending:
		return "pending"
	default:
		return "all"
	}
}

// Session is the edit controller. Single-threaded by design: one reviewer,
// one command at a time.
type Session struct {
	store *store.Store
	log   *slog.Logger

	mode    FilterMode
	records []string
	idx     int

	working  map[string]any
	dirty    bool
	verified bool
	issues   []string

	// undo holds at most one on-disk snapshot per identifier, captured the
	// first time a modification is saved since the entry was last cleared.
	undo map[string]map[string]any
}

// New builds a session over the full record listing and selects the first
// record if any exist.
func New(st *store.Store, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		store: st,
		log:   log,
		mode:  FilterAll,
		idx:   -1,
		undo:  make(map[string]map[string]any),
	}
	records, err := st.List()
	if err != nil {
		return nil, err
	}
	s.records = records
	if len(records) > 0 {
		s.idx = 0
	}
	s.reload()
	return s, nil
}

// loadSource returns the on-disk original for id, collapsed to an empty
// mapping on any structural failure. Partial data is still actionable by the
// reviewer, so nothing here aborts.
func (s *Session) loadSource(id string) map[string]any {
	attrs, err := s.store.Load(id)
	if err != nil {
		var pe *store.ParseError
		if errors.As(err, &pe) {
			s.log.Warn("malformed sample document", "id", id, "error", err)
		} else {
			s.log.Warn("unreadable sample document", "id", id, "error", err)
		}
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs
}

// reload replaces the working copy with the persisted state of the current
// selection. Verified records load from their output copy when one exists, so
// the reviewer sees prior corrections rather than the raw source.
func (s *Session) reload() {
	s.working = map[string]any{}
	s.dirty = false
	s.issues = nil
	s.verified = false

	if s.idx < 0 || s.idx >= len(s.records) {
		return
	}
	id := s.records[s.idx]

	if ledger, err := s.store.LoadLedger(); err == nil {
		s.verified = ledger.IsVerified(id)
	} else {
		s.log.Warn("ledger unavailable", "error", err)
	}

	if s.verified && s.store.OutputExists(id) {
		attrs, err := s.store.LoadOutput(id)
		if err != nil {
			s.log.Warn("malformed verified output", "id", id, "error", err)
		}
		if attrs == nil {
			attrs = map[string]any{}
		}
		s.working = attrs
	} else {
		s.working = s.loadSource(id)
	}

	// Unset categorical attributes default to the sentinel. Adding a default
	// counts as a modification so it persists on the next save.
	for _, key := range schema.CategoricalKeys {
		if _, ok := s.working[key]; !ok {
			s.working[key] = schema.Sentinel
			s.dirty = true
		}
	}
	s.issues = validate.Diagnose(s.working)
}

// SaveIfDirty persists pending edits before a navigation or filter change.
// Explicit precondition step, kept separate so the implicit-save contract is
// testable on its own.
func (s *Session) SaveIfDirty() (string, error) {
	if !s.dirty || s.idx < 0 || s.idx >= len(s.records) {
		return "", nil
	}
	return s.Save()
}

// Select switches the selection to index i, implicitly saving first. An
// out-of-range index is rejected and leaves the selection unchanged.
func (s *Session) Select(i int) (string, error) {
	if _, err := s.SaveIfDirty(); err != nil && !errors.Is(err, ErrNothingToSave) {
		return "", err
	}
	if len(s.records) == 0 {
		return "", fmt.Errorf("%w: no samples in current view", ErrNoSelection)
	}
	if i < 0 || i >= len(s.records) {
		return "", fmt.Errorf("%w: enter a value between 1 and %d", ErrOutOfRange, len(s.records))
	}
	s.idx = i
	s.reload()
	return s.StatusLine(), nil
}

// Next advances to the following record, staying put at the end of the list.
func (s *Session) Next() (string, error) {
	if _, err := s.SaveIfDirty(); err != nil && !errors.Is(err, ErrNothingToSave) {
		return "", err
	}
	if s.idx < len(s.records)-1 {
		s.idx++
	}
	s.reload()
	return s.StatusLine(), nil
}

// Prev steps back to the previous record, staying put at the start.
func (s *Session) Prev() (string, error) {
	if _, err := s.SaveIfDirty(); err != nil && !errors.Is(err, ErrNothingToSave) {
		return "", err
	}
	if s.idx > 0 {
		s.idx--
	}
	s.reload()
	return s.StatusLine(), nil
}

// Edit sets attribute name to value on the working copy. A non-empty value
// outside the attribute's option list is accepted verbatim with an advisory
// warning (free-text override is always permitted). An empty value removes
// the key, except for the mandatory metadata keys which are retained.
func (s *Session) Edit(name, value string) (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	id := s.records[s.idx]

	var status string
	if value != "" {
		if schema.IsCategorical(name) && !schema.IsValid(name, value) {
			if sugg := schema.ClosestMatches(name, value, 3); len(sugg) > 0 {
				status = fmt.Sprintf("Warning: %q is not a standard %s. Did you mean: %s?",
					value, name, strings.Join(sugg, ", "))
			} else {
				status = fmt.Sprintf("Warning: %q is not a standard %s. Using custom value.", value, name)
			}
		}
		// A working copy emptied by a malformed source must not swallow the
		// on-disk metadata on its first edit.
		if len(s.working) == 0 {
			orig := s.loadSource(id)
			for _, key := range schema.MetadataKeys {
				if v, ok := orig[key]; ok {
					s.working[key] = v
				}
			}
		}
		s.working[name] = value
		if status == "" {
			status = fmt.Sprintf("Updated %s to %q", name, value)
		}
	} else {
		if isMetadataKey(name) {
			return "", fmt.Errorf("%w: %s", ErrProtectedKey, name)
		}
		if _, ok := s.working[name]; !ok {
			status = fmt.Sprintf("%s is not set", name)
		} else {
			delete(s.working, name)
			status = fmt.Sprintf("Removed %s", name)
		}
	}

	s.dirty = true
	s.issues = validate.Diagnose(s.working)

	// Edits to an already-verified record keep its output copy in sync.
	if s.verified {
		if err := s.store.SaveOutput(id, s.working); err != nil {
			s.log.Warn("verified output not updated", "id", id, "error", err)
			status += fmt.Sprintf(" (error saving verified output: %v)", err)
		} else {
			status += " (verified output updated)"
		}
	}
	return status, nil
}

// Save records the working copy as the current state of the record. The
// on-disk original is snapshotted into the undo buffer on the first save
// since that buffer entry was last cleared; repeated saves never overwrite
// the snapshot. Mandatory metadata missing from the working copy is
// backfilled from the original.
func (s *Session) Save() (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	if !s.dirty {
		return "", ErrNothingToSave
	}
	id := s.records[s.idx]

	if _, ok := s.undo[id]; !ok {
		s.undo[id] = cloneAttrs(s.loadSource(id))
	}

	orig := s.loadSource(id)
	for _, key := range schema.MetadataKeys {
		if _, ok := s.working[key]; !ok {
			if v, ok := orig[key]; ok {
				s.working[key] = v
			}
		}
	}

	s.dirty = false
	s.issues = validate.Diagnose(s.working)
	status := fmt.Sprintf("Changes recorded for %s (original file unchanged)", id)

	if s.verified {
		if err := s.store.SaveOutput(id, s.working); err != nil {
			s.log.Warn("verified output not updated", "id", id, "error", err)
			status += fmt.Sprintf(" (error saving verified output: %v)", err)
		} else {
			status += " and saved to verified output directory"
		}
	}
	return status, nil
}

// Undo restores the working copy from the snapshot taken at first save and
// consumes the snapshot. The restoration is itself a pending modification.
func (s *Session) Undo() (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	id := s.records[s.idx]
	snap, ok := s.undo[id]
	if !ok {
		return "", ErrNothingToUndo
	}

	orig := s.loadSource(id)
	s.working = cloneAttrs(snap)
	for _, key := range schema.MetadataKeys {
		if _, ok := s.working[key]; !ok {
			if v, ok := orig[key]; ok {
				s.working[key] = v
			}
		}
	}

	s.dirty = true
	s.issues = validate.Diagnose(s.working)
	delete(s.undo, id)

	if ledger, err := s.store.LoadLedger(); err == nil {
		s.verified = ledger.IsVerified(id)
	}
	return fmt.Sprintf("Changes for %s have been undone", id), nil
}

// Reset discards the working copy and reloads straight from the on-disk
// original, keeping metadata values that existed in memory but are absent on
// disk.
func (s *Session) Reset() (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	id := s.records[s.idx]

	kept := map[string]any{}
	for _, key := range schema.MetadataKeys {
		if v, ok := s.working[key]; ok {
			kept[key] = v
		}
	}
	s.working = s.loadSource(id)
	for key, v := range kept {
		if _, ok := s.working[key]; !ok {
			s.working[key] = v
		}
	}
	s.dirty = false
	s.issues = validate.Diagnose(s.working)
	return "Discarded all unsaved changes", nil
}

// Verify finalizes the current record: implicit save, metadata backfill,
// categorical defaulting, output write, and the ledger move from pending to
// verified. The ledger is updated even when the output write fails; the two
// are independent operations and a write failure is only reported. The undo
// entry is cleared; verification ends the edit episode.
func (s *Session) Verify() (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	id := s.records[s.idx]

	var parts []string
	if msg, err := s.SaveIfDirty(); err == nil && msg != "" {
		parts = append(parts, msg)
	}

	orig := s.loadSource(id)
	for _, key := range schema.MetadataKeys {
		if _, ok := s.working[key]; !ok {
			if v, ok := orig[key]; ok {
				s.working[key] = v
			}
		}
	}
	for _, key := range schema.CategoricalKeys {
		if _, ok := s.working[key]; !ok {
			s.working[key] = schema.Sentinel
		}
	}

	writeErr := s.store.SaveOutput(id, s.working)
	if writeErr != nil {
		s.log.Warn("verified output not written", "id", id, "error", writeErr)
	}

	if ledger, err := s.store.LoadLedger(); err != nil {
		parts = append(parts, fmt.Sprintf("error loading ledger: %v", err))
	} else {
		ledger.MarkVerified(id)
		if err := s.store.SaveLedger(ledger); err != nil {
			s.log.Warn("ledger not saved", "id", id, "error", err)
			parts = append(parts, fmt.Sprintf("error saving ledger: %v", err))
		}
	}

	s.verified = true
	s.dirty = false
	s.issues = validate.Diagnose(s.working)
	delete(s.undo, id)

	if writeErr != nil {
		parts = append(parts, fmt.Sprintf("Sample marked as verified (error saving verified output: %v)", writeErr))
	} else {
		parts = append(parts, "Sample marked as verified and saved to verified output directory (original file untouched)")
	}
	return strings.Join(parts, "\n"), nil
}

// Unverify revokes verification: deletes the output document if present and
// moves the identifier back to pending. Failure to delete is reported but
// does not block the ledger move.
func (s *Session) Unverify() (string, error) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", ErrNoSelection
	}
	id := s.records[s.idx]

	ledger, err := s.store.LoadLedger()
	if err != nil {
		return "", err
	}
	if !ledger.IsVerified(id) {
		return "", ErrNotVerified
	}

	status := fmt.Sprintf("Sample %s unmarked as verified", id)
	if s.store.OutputExists(id) {
		if err := s.store.DeleteOutput(id); err != nil {
			s.log.Warn("verified output not deleted", "id", id, "error", err)
			status += fmt.Sprintf(" (error deleting verified output: %v)", err)
		} else {
			status += " and removed from verified output directory"
		}
	}

	ledger.MarkPending(id)
	if err := s.store.SaveLedger(ledger); err != nil {
		s.log.Warn("ledger not saved", "id", id, "error", err)
		status += fmt.Sprintf(" (error saving ledger: %v)", err)
	}
	s.verified = false
	return status, nil
}

// Filter recomputes the active record list from the requested ledger
// partition, implicitly saving pending edits first. Selection moves to the
// first record of the new list, or to the empty state with a partition-
// specific message.
func (s *Session) Filter(mode FilterMode) (string, error) {
	if _, err := s.SaveIfDirty(); err != nil && !errors.Is(err, ErrNothingToSave) {
		return "", err
	}

	listing, err := s.store.List()
	if err != nil {
		return "", err
	}
	ledger, err := s.store.LoadLedger()
	if err != nil {
		return "", err
	}

	var records []string
	switch mode {
	case FilterVerified:
		for _, id := range listing {
			if ledger.IsVerified(id) {
				records = append(records, id)
			}
		}
	case FilterPending:
		for _, id := range listing {
			if !ledger.IsVerified(id) {
				records = append(records, id)
			}
		}
	default:
		records = listing
	}

	s.mode = mode
	s.records = records
	if len(records) == 0 {
		s.idx = -1
		s.reload()
		switch mode {
		case FilterVerified:
			return "No verified samples found. Verify samples to see them here.", nil
		case FilterPending:
			return "No pending samples found. All samples have been verified!", nil
		default:
			return "No samples found in the input directory.", nil
		}
	}
	s.idx = 0
	s.reload()
	return s.StatusLine(), nil
}

// --- read accessors for presentation layers ---

// Working exposes the in-memory working copy. Callers must treat it as
// read-only; all mutations go through Edit.
func (s *Session) Working() map[string]any { return s.working }

func (s *Session) Issues() []string  { return s.issues }
func (s *Session) Dirty() bool       { return s.dirty }
func (s *Session) Verified() bool    { return s.verified }
func (s *Session) Index() int        { return s.idx }
func (s *Session) Count() int        { return len(s.records) }
func (s *Session) Mode() FilterMode  { return s.mode }
func (s *Session) Records() []string { return s.records }

// CurrentID returns the selected identifier, if any.
func (s *Session) CurrentID() (string, bool) {
	if s.idx < 0 || s.idx >= len(s.records) {
		return "", false
	}
	return s.records[s.idx], true
}

// UndoAvailable reports whether an undo snapshot exists for the selection.
func (s *Session) UndoAvailable() bool {
	id, ok := s.CurrentID()
	if !ok {
		return false
	}
	_, ok = s.undo[id]
	return ok
}

// StatusLine renders the one-line position summary shown by the UI.
func (s *Session) StatusLine() string {
	id, ok := s.CurrentID()
	if !ok {
		return "No samples in current view"
	}
	return fmt.Sprintf("Sample %d/%d: %s", s.idx+1, len(s.records), id)
}

// ImageInfo returns the expected image path for the selection and whether
// the image actually exists. A missing image is informational, never fatal.
func (s *Session) ImageInfo() (string, bool) {
	id, ok := s.CurrentID()
	if !ok {
		return "", false
	}
	return s.store.ImagePath(id), s.store.HasImage(id)
}

// Stats returns verification progress from the ledger.
func (s *Session) Stats() (store.Stats, error) {
	ledger, err := s.store.LoadLedger()
	if err != nil {
		return store.Stats{}, err
	}
	return ledger.Stats(), nil
}

func isMetadataKey(name string) bool {
	for _, key := range schema.MetadataKeys {
		if key == name {
			return true
		}
	}
	return false
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
