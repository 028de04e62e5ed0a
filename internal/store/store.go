// Package store persists the annotation corpus: source sample documents
// (read-only), verified output documents, and the verification ledger. All
// file access goes through a billy.Filesystem so tests can run against an
// in-memory filesystem.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// ledgerFile is the ledger document name inside the output directory.
const ledgerFile = "verification_progress.json"

// ParseError marks a source document that exists but does not decode to a
// JSON object. Callers that need resilience collapse it to an empty mapping;
// keeping the type distinct keeps the failure visible for debugging.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store reads and writes sample documents under a fixed input/output layout.
type Store struct {
	fs        billy.Filesystem
	inputDir  string
	outputDir string
}

func New(fs billy.Filesystem, inputDir, outputDir string) *Store {
	return &Store{fs: fs, inputDir: inputDir, outputDir: outputDir}
}

// Bootstrap creates the input and output directories if they do not exist.
func (s *Store) Bootstrap() error {
	if err := s.fs.MkdirAll(s.inputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.inputDir, err)
	}
	if err := s.fs.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.outputDir, err)
	}
	return nil
}

// List enumerates sample identifiers: the base names of the .json documents
// in the input directory, sorted lexicographically. Recomputed on every call
// so filesystem changes show up on the next listing.
func (s *Store) List() ([]string, error) {
	entries, err := s.fs.ReadDir(s.inputDir)
	if err != nil {
		return nil, fmt.Errorf("list samples in %s: %w", s.inputDir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads a source document. A document that exists but does not parse to
// an object yields an empty mapping together with a *ParseError.
func (s *Store) Load(id string) (map[string]any, error) {
	return s.loadFrom(s.inputDir, id)
}

// LoadOutput reads the verified output document for id.
func (s *Store) LoadOutput(id string) (map[string]any, error) {
	return s.loadFrom(s.outputDir, id)
}

func (s *Store) loadFrom(dir, id string) (map[string]any, error) {
	path := s.fs.Join(dir, id)
	data, err := util.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parsed, err := oj.Parse(data)
	if err != nil {
		return map[string]any{}, &ParseError{Path: path, Err: err}
	}
	attrs, ok := parsed.(map[string]any)
	if !ok {
		return map[string]any{}, &ParseError{Path: path, Err: errors.New("document is not an object")}
	}
	return attrs, nil
}

// SaveOutput writes attrs as the verified output document for id, creating
// the output directory as needed. Overwrites any previous document. Keys are
// sorted and the body indented so verified documents diff cleanly.
func (s *Store) SaveOutput(id string, attrs map[string]any) error {
	if err := s.fs.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.outputDir, err)
	}
	body := oj.JSON(attrs, &oj.Options{Indent: 4, Sort: true}) + "\n"
	path := s.fs.Join(s.outputDir, id)
	if err := util.WriteFile(s.fs, path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// OutputExists reports whether a verified output document exists for id.
func (s *Store) OutputExists(id string) bool {
	_, err := s.fs.Stat(s.fs.Join(s.outputDir, id))
	return err == nil
}

// DeleteOutput removes the verified output document for id. Deleting a
// document that does not exist is not an error.
func (s *Store) DeleteOutput(id string) error {
	path := s.fs.Join(s.outputDir, id)
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ListOutputs enumerates verified output documents, excluding the ledger.
func (s *Store) ListOutputs() ([]string, error) {
	entries, err := s.fs.ReadDir(s.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list outputs in %s: %w", s.outputDir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == ledgerFile {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// ImagePath returns the expected image path for a sample document: same base
// name with a .jpg extension in the input directory.
func (s *Store) ImagePath(id string) string {
	stem := strings.TrimSuffix(id, ".json")
	return s.fs.Join(s.inputDir, stem+".jpg")
}

// HasImage reports whether the sample's image exists.
func (s *Store) HasImage(id string) bool {
	_, err := s.fs.Stat(s.ImagePath(id))
	return err == nil
}

// WriteReport writes an exported report document into the output directory
// and returns its path.
func (s *Store) WriteReport(name string, body []byte) (string, error) {
	if err := s.fs.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", s.outputDir, err)
	}
	path := s.fs.Join(s.outputDir, name)
	if err := util.WriteFile(s.fs, path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
