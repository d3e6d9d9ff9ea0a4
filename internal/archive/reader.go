package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/graphvault/graphvault-go/internal/errors"
	"github.com/graphvault/graphvault-go/internal/logging"
	"github.com/graphvault/graphvault-go/internal/model"
)

// maxExtractBytes caps how much a single bundle entry may inflate to.
// Anything past this is treated as a corrupt or hostile container.
const maxExtractBytes = 1 << 30

// Reader opens archives from a raw data file or a zip bundle and
// validates them. Extraction directories are scoped to the Reader and
// removed by Close on every exit path of the owning engine.
type Reader struct {
	log       *logging.Logger
	extracted []string
}

// NewReader creates a reader.
func NewReader(log *logging.Logger) *Reader {
	return &Reader{log: log}
}

// Open reads the archive at path, extracting first when it is a bundle.
// The whole archive is accepted or nothing is: a schema violation or
// hash mismatch yields an error and no partial result.
func (r *Reader) Open(path string) (*model.BackupArchive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.FileSystemErrorf(err, "archive not found: %s", path)
	}

	dataFile := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extracted, err := r.extractBundle(path)
		if err != nil {
			return nil, err
		}
		dataFile = extracted
	}

	if err := verifySidecar(dataFile); err != nil {
		return nil, err
	}

	return parseArchive(dataFile)
}

// Close removes every extraction directory this reader created.
func (r *Reader) Close() error {
	var firstErr error
	for _, dir := range r.extracted {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.extracted = nil
	return firstErr
}

// extractBundle unpacks a zip bundle into a fresh private directory and
// returns the extracted data file. Hostile entries (absolute paths,
// traversal outside the directory, unrecognized extensions) are skipped,
// not fatal; the bundle as a whole only fails when no data file remains.
func (r *Reader) extractBundle(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", apperrors.IntegrityErrorf("cannot open bundle %s: %v", filepath.Base(path), err)
	}
	defer zr.Close()

	destDir := filepath.Join(os.TempDir(), "gvault-restore-"+uuid.NewString())
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", apperrors.FileSystemErrorf(err, "failed to create extraction directory")
	}
	r.extracted = append(r.extracted, destDir)

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entry.Name
		if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
			r.log.Warn("skipping bundle entry with absolute path", "entry", name)
			continue
		}

		target := filepath.Join(destDir, name)
		rel, err := filepath.Rel(destDir, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			r.log.Warn("skipping bundle entry escaping extraction directory", "entry", name)
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".sha256" {
			r.log.Warn("skipping bundle entry with unrecognized extension", "entry", name)
			continue
		}

		if err := extractEntry(entry, target); err != nil {
			return "", err
		}
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.json"))
	if err != nil || len(matches) == 0 {
		return "", apperrors.IntegrityErrorf("no data file found in bundle %s", filepath.Base(path))
	}
	sort.Strings(matches)
	return matches[0], nil
}

func extractEntry(entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return apperrors.IntegrityErrorf("cannot read bundle entry %s: %v", entry.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return apperrors.FileSystemErrorf(err, "failed to create extraction subdirectory")
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return apperrors.FileSystemErrorf(err, "failed to create extracted file")
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(rc, maxExtractBytes+1))
	if err != nil {
		return apperrors.IntegrityErrorf("failed to extract %s: %v", entry.Name, err)
	}
	if written > maxExtractBytes {
		os.Remove(target)
		return apperrors.IntegrityErrorf("bundle entry %s exceeds the size limit", entry.Name)
	}
	return nil
}

// VerifyResult reports a standalone hash check.
type VerifyResult struct {
	DataFile string
	Hash     string
	Expected string
	Matched  bool
}

// Verify recomputes the SHA-256 of the archive's data file and compares
// it to the sidecar record, without touching any database. path may be a
// bundle or a raw data file; a missing sidecar is an integrity error
// here, unlike in Open where it is optional.
func (r *Reader) Verify(path string) (*VerifyResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.FileSystemErrorf(err, "archive not found: %s", path)
	}

	dataFile := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extracted, err := r.extractBundle(path)
		if err != nil {
			return nil, err
		}
		dataFile = extracted
	}

	expected, err := sidecarHash(dataFile)
	if err != nil {
		return nil, err
	}
	if expected == "" {
		return nil, apperrors.IntegrityErrorf("no hash sidecar found for %s", filepath.Base(dataFile))
	}

	actual, err := fileHash(dataFile)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		DataFile: dataFile,
		Hash:     actual,
		Expected: expected,
		Matched:  actual == expected,
	}, nil
}

// verifySidecar checks the data file against its sidecar when one sits
// next to it. No sidecar means nothing to check.
func verifySidecar(dataFile string) error {
	expected, err := sidecarHash(dataFile)
	if err != nil {
		return err
	}
	if expected == "" {
		return nil
	}

	actual, err := fileHash(dataFile)
	if err != nil {
		return err
	}
	if actual != expected {
		return apperrors.IntegrityErrorf("hash mismatch for %s: recorded %s, computed %s",
			filepath.Base(dataFile), expected, actual)
	}
	return nil
}

// sidecarHash returns the recorded hash, or "" when no sidecar exists.
func sidecarHash(dataFile string) (string, error) {
	sidecar := strings.TrimSuffix(dataFile, filepath.Ext(dataFile)) + ".sha256"
	data, err := os.ReadFile(sidecar)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.FileSystemErrorf(err, "failed to read sidecar %s", sidecar)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", apperrors.IntegrityErrorf("sidecar %s is empty", filepath.Base(sidecar))
	}
	return fields[0], nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.FileSystemErrorf(err, "failed to open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", apperrors.FileSystemErrorf(err, "failed to hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// parseArchive decodes and schema-validates the data file. Validation
// errors name the offending field.
func parseArchive(dataFile string) (*model.BackupArchive, error) {
	data, err := os.ReadFile(dataFile)
	if err != nil {
		return nil, apperrors.FileSystemErrorf(err, "failed to read %s", dataFile)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.ValidationErrorf("archive is not a JSON object: %v", err)
	}

	metadata, ok := top["metadata"]
	if !ok {
		return nil, apperrors.ValidationError("archive is missing the metadata field")
	}
	if !rawIsObject(metadata) {
		return nil, apperrors.ValidationError("archive field metadata is not an object")
	}

	rawNodes, ok := top["nodes"]
	if !ok {
		return nil, apperrors.ValidationError("archive is missing the nodes field")
	}
	var nodeList []json.RawMessage
	if err := json.Unmarshal(rawNodes, &nodeList); err != nil {
		return nil, apperrors.ValidationError("archive field nodes is not a sequence")
	}

	rawRels, ok := top["relationships"]
	if !ok {
		return nil, apperrors.ValidationError("archive is missing the relationships field")
	}
	if !rawIsArray(rawRels) {
		return nil, apperrors.ValidationError("archive field relationships is not a sequence")
	}

	// Sample-validate the first node: it must look like a node
	if len(nodeList) > 0 {
		var first map[string]json.RawMessage
		if err := json.Unmarshal(nodeList[0], &first); err != nil {
			return nil, apperrors.ValidationError("archive nodes[0] is not an object")
		}
		if _, hasLabels := first["labels"]; !hasLabels {
			if _, hasProps := first["properties"]; !hasProps {
				return nil, apperrors.ValidationError("archive nodes[0] has neither labels nor properties")
			}
		}
	}

	var archive model.BackupArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, apperrors.ValidationErrorf("archive failed to decode: %v", err)
	}
	return &archive, nil
}

func rawIsObject(raw json.RawMessage) bool { return rawStartsWith(raw, '{') }
func rawIsArray(raw json.RawMessage) bool  { return rawStartsWith(raw, '[') }

func rawStartsWith(raw json.RawMessage, b byte) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c == b
	}
	return false
}
