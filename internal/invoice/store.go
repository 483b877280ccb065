package invoice

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inboxpilot/internal/assistant"
)

var header = []string{"invoice_id", "amount", "due_date"}

// Store appends invoice records to a CSV file. The header row is
// written once when the file is created; subsequent records append.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store writing to path. The file and its parent
// directory are created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Persist appends one record to the ledger.
func (s *Store) Persist(_ context.Context, rec assistant.InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	_, statErr := os.Stat(s.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			f.Close()
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	if err := w.Write([]string{rec.InvoiceID, rec.Amount, rec.DueDate}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write invoice record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush invoice record: %w", err)
	}
	return f.Close()
}

// Records reads back all persisted invoice records.
func (s *Store) Records() ([]assistant.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var records []assistant.InvoiceRecord
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 3 {
			return nil, fmt.Errorf("malformed ledger row %d: %d columns", i, len(row))
		}
		records = append(records, assistant.InvoiceRecord{
			InvoiceID: row[0],
			Amount:    row[1],
			DueDate:   row[2],
		})
	}
	return records, nil
}
