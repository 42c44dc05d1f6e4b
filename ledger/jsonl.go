package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists each portfolio's ledger as a JSON-lines file at
// <root>/<portfolio>/ledger.jsonl: one self-contained JSON object per
// line, appended and never rewritten.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a JSONL store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Path returns the ledger file path for a portfolio.
func (s *FileStore) Path(portfolioID string) string {
	return filepath.Join(s.root, portfolioID, "ledger.jsonl")
}

// Append writes one entry as a single line. The write is flushed and
// synced before returning: an entry either fully exists on disk or
// was never written.
func (s *FileStore) Append(portfolioID string, e Entry) error {
	path := s.Path(portfolioID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create portfolio dir: %w", err)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// ReadAll returns every parseable entry for the portfolio. Corrupt or
// partially-written lines are skipped, not fatal: the ledger is an
// audit trail and valid history stays available. A missing file is an
// empty ledger.
func (s *FileStore) ReadAll(portfolioID string) ([]Entry, error) {
	f, err := os.Open(s.Path(portfolioID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var entries []Entry
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	if skipped > 0 {
		slog.Warn("skipped corrupt ledger lines",
			"portfolio", portfolioID, "skipped", skipped)
	}
	return entries, nil
}
