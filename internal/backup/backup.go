// Package backup implements the Backup Store (C9): content-addressed
// snapshots of pre-change file contents with SHA-256 verification and
// per-file restore that reports each file it could not restore, per spec
// §4.9.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"structgraph/internal/logging"
	"structgraph/internal/model"
)

const metadataFilename = "metadata.json"
const payloadDirname = "payload"

// Store manages backups under a root directory.
type Store struct {
	root string
}

// New constructs a Store rooted at dir (e.g. "<project>/.ast-grep-backups").
func New(dir string) *Store {
	return &Store{root: dir}
}

// Create snapshots files (absolute paths) under a new backup directory
// named `YYYYMMDD-HHMMSS-<short-uuid>`, preserving their relative
// structure under payload/, and writes a metadata.json record.
func (s *Store) Create(files []string, projectRoot, operationTag string) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no files to back up", model.ErrInvalidInput)
	}

	id := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), shortSuffix())
	backupDir := filepath.Join(s.root, id)
	payloadDir := filepath.Join(backupDir, payloadDirname)

	if err := os.MkdirAll(payloadDir, 0755); err != nil {
		return "", &model.StorageError{Op: "create", Path: backupDir, Err: err}
	}

	meta := model.BackupMetadata{Operation: operationTag, Timestamp: time.Now().UTC()}

	for _, f := range files {
		rel, err := filepath.Rel(projectRoot, f)
		if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
			rel = filepath.Base(f)
		}
		dest := filepath.Join(payloadDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			_ = os.RemoveAll(backupDir)
			return "", &model.StorageError{Op: "create", Path: dest, Err: err}
		}

		size, sum, err := copyFileWithHash(f, dest)
		if err != nil {
			_ = os.RemoveAll(backupDir)
			return "", &model.StorageError{Op: "create", Path: f, Err: err}
		}

		meta.Files = append(meta.Files, model.BackupFileEntry{
			OriginalPath: f,
			BackupPath:   rel,
			Size:         size,
			SHA256:       sum,
		})
	}

	if err := writeMetadata(backupDir, meta); err != nil {
		_ = os.RemoveAll(backupDir)
		return "", &model.StorageError{Op: "create", Path: backupDir, Err: err}
	}

	logging.BackupDebug("created backup %s with %d files (operation=%s)", id, len(files), operationTag)
	return id, nil
}

// Restore copies every file in the backup back to its OriginalPath,
// verifying SHA-256 against the recorded hash before and after restore to
// detect tampering (spec §4.9 invariant, §8 round-trip property).
func (s *Store) Restore(backupID string) (*model.RestoreReport, error) {
	backupDir := filepath.Join(s.root, backupID)
	meta, err := readMetadata(backupDir)
	if err != nil {
		return nil, &model.StorageError{Op: "restore", Path: backupDir, Err: err}
	}

	report := &model.RestoreReport{Errors: make(map[string]string)}
	for _, entry := range meta.Files {
		src := filepath.Join(backupDir, payloadDirname, entry.BackupPath)

		sum, err := sha256File(src)
		if err != nil {
			report.Errors[entry.OriginalPath] = err.Error()
			continue
		}
		if sum != entry.SHA256 {
			report.Errors[entry.OriginalPath] = fmt.Sprintf("%v: backup payload hash mismatch (tamper detected)", model.ErrConflict)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0755); err != nil {
			report.Errors[entry.OriginalPath] = err.Error()
			continue
		}
		_, restoredSum, err := copyFileWithHash(src, entry.OriginalPath)
		if err != nil {
			report.Errors[entry.OriginalPath] = err.Error()
			continue
		}
		if restoredSum != entry.SHA256 {
			report.Errors[entry.OriginalPath] = fmt.Sprintf("%v: restored file hash mismatch", model.ErrConflict)
			continue
		}
		report.RestoredFiles = append(report.RestoredFiles, entry.OriginalPath)
	}

	logging.BackupDebug("restored backup %s: %d files restored, %d errors", backupID, len(report.RestoredFiles), len(report.Errors))
	return report, nil
}

// List returns a summary of every backup under the store root, newest
// first.
func (s *Store) List() ([]model.BackupEntry, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.StorageError{Op: "list", Path: s.root, Err: err}
	}

	var out []model.BackupEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(s.root, e.Name()))
		if err != nil {
			logging.BackupError("skipping unreadable backup %s: %v", e.Name(), err)
			continue
		}
		out = append(out, model.BackupEntry{
			ID:        e.Name(),
			CreatedAt: meta.Timestamp,
			Operation: meta.Operation,
			FileCount: len(meta.Files),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Cleanup removes backups older than the given cutoff, returning the
// number removed.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.CreatedAt.Before(olderThan) {
			if err := os.RemoveAll(filepath.Join(s.root, e.ID)); err != nil {
				return removed, &model.StorageError{Op: "cleanup", Path: e.ID, Err: err}
			}
			removed++
		}
	}
	return removed, nil
}

func shortSuffix() string {
	id := uuid.New().String()
	return id[:8]
}

func writeMetadata(backupDir string, meta model.BackupMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(backupDir, metadataFilename), data, 0644)
}

func readMetadata(backupDir string) (model.BackupMetadata, error) {
	var meta model.BackupMetadata
	data, err := os.ReadFile(filepath.Join(backupDir, metadataFilename))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func copyFileWithHash(src, dest string) (size int64, sha256hex string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, "", err
	}
	defer out.Close()

	h := sha256.New()
	w := io.MultiWriter(out, h)
	n, err := io.Copy(w, in)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
