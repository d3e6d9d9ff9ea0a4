// Package archive owns the on-disk snapshot format: canonical JSON data
// file, SHA-256 sidecar, deflate zip bundle, and the append-only backup
// ledger.
package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/graphvault/graphvault-go/internal/errors"
	"github.com/graphvault/graphvault-go/internal/logging"
	"github.com/graphvault/graphvault-go/internal/model"
)

// FormatVersion is the archive format written by this code.
const FormatVersion = "2.0"

// DataFilePrefix names every archive data file; listing and name
// resolution rely on it.
const DataFilePrefix = "BACKUP_COMPLETE_"

// WriteResult describes the three files one backup run persists.
type WriteResult struct {
	Archive        *model.BackupArchive
	DataFile       string
	HashFile       string
	BundleFile     string
	Hash           string
	RawSize        int64
	CompressedSize int64
}

// Ratio returns the compression ratio in percent. An empty export is
// valid; the zero-size case reports 0 instead of dividing by zero.
func (r *WriteResult) Ratio() float64 {
	if r.RawSize == 0 {
		return 0
	}
	return (1 - float64(r.CompressedSize)/float64(r.RawSize)) * 100
}

// Writer persists snapshots into a backup directory.
type Writer struct {
	dir       string
	sourceURI string
	log       *logging.Logger
}

// NewWriter creates a writer. The directory is created on first use.
func NewWriter(dir, sourceURI string, log *logging.Logger) *Writer {
	return &Writer{dir: dir, sourceURI: sourceURI, log: log}
}

// Write serializes the snapshot, hashes the exact written bytes, writes
// the sidecar, and packages both into a zip bundle next to them.
func (w *Writer) Write(nodes []model.GraphNode, rels []model.GraphRelationship, labelCounts map[string]int64, tag string) (*WriteResult, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to create backup directory %s", w.dir)
	}

	now := time.Now()
	archive := &model.BackupArchive{
		Metadata: model.Metadata{
			FormatVersion: FormatVersion,
			CreatedAt:     now,
			Tag:           tag,
			SourceURI:     w.sourceURI,
			Statistics: model.Statistics{
				TotalNodes:         len(nodes),
				TotalRelationships: len(rels),
				Labels:             labelCounts,
			},
		},
		Nodes:         nodes,
		Relationships: rels,
	}

	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, apperrors.InternalErrorf("failed to serialize archive: %v", err)
	}

	baseName := DataFilePrefix + now.Format("20060102_150405")
	if tag != "" {
		baseName += "_" + sanitizeTag(tag)
	}

	dataFile := filepath.Join(w.dir, baseName+".json")
	if err := os.WriteFile(dataFile, data, 0644); err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to write %s", dataFile)
	}

	// Hash over the exact bytes that hit disk
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	hashFile := filepath.Join(w.dir, baseName+".sha256")
	sidecar := fmt.Sprintf("%s  %s\n", hash, filepath.Base(dataFile))
	if err := os.WriteFile(hashFile, []byte(sidecar), 0644); err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to write %s", hashFile)
	}

	bundleFile := filepath.Join(w.dir, baseName+".zip")
	if err := writeBundle(bundleFile, dataFile, hashFile); err != nil {
		return nil, err
	}

	bundleInfo, err := os.Stat(bundleFile)
	if err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to stat %s", bundleFile)
	}

	result := &WriteResult{
		Archive:        archive,
		DataFile:       dataFile,
		HashFile:       hashFile,
		BundleFile:     bundleFile,
		Hash:           hash,
		RawSize:        int64(len(data)),
		CompressedSize: bundleInfo.Size(),
	}

	w.log.Info("archive written",
		"file", filepath.Base(dataFile),
		"bytes", result.RawSize,
		"compressed", result.CompressedSize,
		"ratio_pct", fmt.Sprintf("%.1f", result.Ratio()),
		"hash", hash[:16])

	return result, nil
}

// writeBundle packages the data file and its sidecar into a deflate zip.
func writeBundle(bundlePath string, files ...string) error {
	out, err := os.Create(bundlePath)
	if err != nil {
		return apperrors.FileSystemErrorf(err, "failed to create %s", bundlePath)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addToBundle(zw, file); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return apperrors.FileSystemErrorf(err, "failed to finalize %s", bundlePath)
	}
	return nil
}

func addToBundle(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return apperrors.FileSystemErrorf(err, "failed to open %s", path)
	}
	defer in.Close()

	header := &zip.FileHeader{
		Name:   filepath.Base(path),
		Method: zip.Deflate,
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return apperrors.FileSystemErrorf(err, "failed to add %s to bundle", path)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return apperrors.FileSystemErrorf(err, "failed to compress %s", path)
	}
	return nil
}

// sanitizeTag keeps tags filesystem-safe before they land in a filename.
func sanitizeTag(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
