package archive

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/graphvault/graphvault-go/internal/errors"
	"github.com/graphvault/graphvault-go/internal/model"
)

// LedgerFileName is the per-backup-directory history file.
const LedgerFileName = "BACKUP_LOG.json"

// Ledger is the append-only history of completed backups. Entries are
// only ever added; the file is rewritten via a temp file and rename so a
// crash cannot lose previous entries.
type Ledger struct {
	path string
}

// NewLedger returns the ledger of the given backup directory.
func NewLedger(dir string) *Ledger {
	return &Ledger{path: filepath.Join(dir, LedgerFileName)}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Entries reads the full history, oldest first. A missing ledger is an
// empty history, not an error.
func (l *Ledger) Entries() ([]model.LedgerEntry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to read ledger %s", l.path)
	}

	var entries []model.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.ValidationErrorf("ledger %s is not a valid entry list: %v", l.path, err)
	}
	return entries, nil
}

// Append adds one entry for a completed backup.
func (l *Ledger) Append(entry model.LedgerEntry) error {
	entries, err := l.Entries()
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperrors.InternalErrorf("failed to serialize ledger: %v", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.FileSystemErrorf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return apperrors.FileSystemErrorf(err, "failed to replace ledger %s", l.path)
	}
	return nil
}
