// Package engine exposes the two public operations, createBackup and
// restoreBackup, plus the supporting status/history/verify surface the
// CLI builds on. It is embeddable: nothing in here prompts, prints, or
// exits the process.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/graphvault/graphvault-go/internal/archive"
	"github.com/graphvault/graphvault-go/internal/config"
	apperrors "github.com/graphvault/graphvault-go/internal/errors"
	"github.com/graphvault/graphvault-go/internal/graph"
	"github.com/graphvault/graphvault-go/internal/logging"
	"github.com/graphvault/graphvault-go/internal/model"
)

// Engine is one backup/restore session against a single target. Each
// invocation runs sequentially; callers that need to prevent concurrent
// runs against the same target serialize externally.
type Engine struct {
	cfg     *config.Config
	g       graph.Graph
	client  *graph.Client
	reader  *archive.Reader
	writer  *archive.Writer
	ledger  *archive.Ledger
	confirm graph.ConfirmFunc
	log     *logging.Logger
}

// New validates the configuration, connects to the target, and returns
// a ready engine. confirm decides whether a non-empty target may be
// cleared during restore; nil means never clear.
func New(ctx context.Context, cfg *config.Config, confirm graph.ConfirmFunc, log *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := graph.NewClient(ctx,
		cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database,
		cfg.Backup.OperationTimeout)
	if err != nil {
		return nil, err
	}

	e := newWithGraph(cfg, client, confirm, log)
	e.client = client
	return e, nil
}

// newWithGraph wires an engine over an already-connected graph. Tests
// use it to inject fakes.
func newWithGraph(cfg *config.Config, g graph.Graph, confirm graph.ConfirmFunc, log *logging.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		g:       g,
		reader:  archive.NewReader(log),
		writer:  archive.NewWriter(cfg.Backup.Directory, cfg.Neo4j.URI, log),
		ledger:  archive.NewLedger(cfg.Backup.Directory),
		confirm: confirm,
		log:     log,
	}
}

// Close releases the driver connection and removes any extraction
// directories created during restores.
func (e *Engine) Close(ctx context.Context) error {
	err := e.reader.Close()
	if e.client != nil {
		if cerr := e.client.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// CreateBackup exports the whole target and persists the archive. Any
// read error aborts before anything is written; a backup either fully
// exists with its ledger entry or not at all.
func (e *Engine) CreateBackup(ctx context.Context, tag string) (*archive.WriteResult, error) {
	exporter := graph.NewExporter(e.g, e.cfg.Backup.PageSize, e.log)
	nodes, rels, labelCounts, err := exporter.ExportAll(ctx)
	if err != nil {
		return nil, err
	}

	result, err := e.writer.Write(nodes, rels, labelCounts, tag)
	if err != nil {
		return nil, err
	}

	entry := model.LedgerEntry{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		DataFile:        filepath.Base(result.DataFile),
		BundleFile:      filepath.Base(result.BundleFile),
		Hash:            result.Hash,
		SizeBytes:       result.RawSize,
		CompressedBytes: result.CompressedSize,
		Nodes:           len(nodes),
		Relationships:   len(rels),
		Tag:             tag,
	}
	if err := e.ledger.Append(entry); err != nil {
		return nil, err
	}

	e.log.Info("backup complete",
		"nodes", len(nodes), "relationships", len(rels), "tag", tag)
	return result, nil
}

// RestoreBackup opens the archive at pathOrName (a path, or a bare name
// resolved against the backup directory) and replays it into the target.
func (e *Engine) RestoreBackup(ctx context.Context, pathOrName string) (*model.RestoreReport, error) {
	path, err := e.resolveArchive(pathOrName)
	if err != nil {
		return nil, err
	}

	a, err := e.reader.Open(path)
	if err != nil {
		return nil, err
	}
	e.log.Info("archive loaded",
		"file", filepath.Base(path),
		"created_at", a.Metadata.CreatedAt,
		"nodes", len(a.Nodes),
		"relationships", len(a.Relationships))

	restorer := graph.NewRestorer(e.g, e.cfg.Backup.BatchSize, e.confirm, e.log)
	return restorer.Restore(ctx, a)
}

// VerifyArchive recomputes the archive hash against its sidecar without
// touching the database.
func (e *Engine) VerifyArchive(path string) (*archive.VerifyResult, error) {
	resolved, err := e.resolveArchive(path)
	if err != nil {
		return nil, err
	}
	return e.reader.Verify(resolved)
}

// TargetStatus describes the live target.
type TargetStatus struct {
	Nodes         int64
	Relationships int64
	Labels        map[string]int64
}

// Status counts nodes and relationships and derives the per-label
// distribution of the target.
func (e *Engine) Status(ctx context.Context) (*TargetStatus, error) {
	nodes, err := graph.CountNodes(ctx, e.g)
	if err != nil {
		return nil, err
	}
	rels, err := graph.CountRelationships(ctx, e.g)
	if err != nil {
		return nil, err
	}
	labels, err := graph.LabelCounts(ctx, e.g)
	if err != nil {
		return nil, err
	}
	return &TargetStatus{Nodes: nodes, Relationships: rels, Labels: labels}, nil
}

// History returns the most recent ledger entries, newest first. limit of
// zero or less means all.
func (e *Engine) History(limit int) ([]model.LedgerEntry, error) {
	entries, err := e.ledger.Entries()
	if err != nil {
		return nil, err
	}

	// Ledger is oldest-first on disk
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// BackupInfo is one bundle present in the backup directory.
type BackupInfo struct {
	Name      string
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// ListBackups lists the bundles in the backup directory, oldest first.
func (e *Engine) ListBackups() ([]BackupInfo, error) {
	pattern := filepath.Join(e.cfg.Backup.Directory, archive.DataFilePrefix+"*.zip")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to list backups in %s", e.cfg.Backup.Directory)
	}
	sort.Strings(matches)

	infos := make([]BackupInfo, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		infos = append(infos, BackupInfo{
			Name:      filepath.Base(m),
			Path:      m,
			SizeBytes: fi.Size(),
			ModTime:   fi.ModTime(),
		})
	}
	return infos, nil
}

// resolveArchive accepts an existing path as-is; a bare name is looked
// up in the backup directory, with and without a .zip suffix.
func (e *Engine) resolveArchive(pathOrName string) (string, error) {
	if _, err := os.Stat(pathOrName); err == nil {
		return pathOrName, nil
	}

	if !strings.ContainsRune(pathOrName, os.PathSeparator) {
		candidates := []string{
			filepath.Join(e.cfg.Backup.Directory, pathOrName),
			filepath.Join(e.cfg.Backup.Directory, pathOrName+".zip"),
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				return c, nil
			}
		}
	}

	return "", apperrors.FileSystemErrorf(os.ErrNotExist, "backup not found: %s", pathOrName)
}
