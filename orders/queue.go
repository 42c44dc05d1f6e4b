package orders

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/id"
)

// Queue is the per-portfolio, per-period pending order list.
// Settlement loads a period's orders once; Clear is an optional
// post-settlement step, never a correctness requirement.
type Queue interface {
	Load(portfolioID string, period date.Date) ([]PendingOrder, error)
	Append(portfolioID string, period date.Date, orders ...PendingOrder) error
	Clear(portfolioID string, period date.Date) error
}

// FileQueue stores each period's intents as a JSONL file at
// <root>/<portfolio>/orders/<YYYY-MM-DD>.jsonl.
type FileQueue struct {
	root string
}

var _ Queue = (*FileQueue)(nil)

// NewFileQueue creates a file-backed queue rooted at dir.
func NewFileQueue(dir string) (*FileQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create order queue root: %w", err)
	}
	return &FileQueue{root: dir}, nil
}

// Path returns the queue file for one portfolio and period.
func (q *FileQueue) Path(portfolioID string, period date.Date) string {
	return filepath.Join(q.root, portfolioID, "orders", period.String()+".jsonl")
}

// Append validates and writes intents to the period file, assigning a
// ULID to any order that arrives without one.
func (q *FileQueue) Append(portfolioID string, period date.Date, orders ...PendingOrder) error {
	path := q.Path(portfolioID, period)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create orders dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open order queue: %w", err)
	}
	defer f.Close()

	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("invalid order for %s on %s: %w", portfolioID, period, err)
		}
		if o.ID == "" {
			o.ID = id.New()
		}
		line, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode order: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append order: %w", err)
		}
	}
	return f.Sync()
}

// Load returns the period's intents in file order. Corrupt lines are
// skipped; a missing file is an empty queue.
func (q *FileQueue) Load(portfolioID string, period date.Date) ([]PendingOrder, error) {
	f, err := os.Open(q.Path(portfolioID, period))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open order queue: %w", err)
	}
	defer f.Close()

	var out []PendingOrder
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var o PendingOrder
		if err := json.Unmarshal(line, &o); err != nil {
			skipped++
			continue
		}
		out = append(out, o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan order queue: %w", err)
	}
	if skipped > 0 {
		slog.Warn("skipped corrupt order lines",
			"portfolio", portfolioID, "period", period.String(), "skipped", skipped)
	}
	return out, nil
}

// Clear removes the period file. Missing files are fine: clearing is
// idempotent.
func (q *FileQueue) Clear(portfolioID string, period date.Date) error {
	err := os.Remove(q.Path(portfolioID, period))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear order queue: %w", err)
	}
	return nil
}
