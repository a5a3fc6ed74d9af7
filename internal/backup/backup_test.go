package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCreateRestore_RoundTrip is spec §8's universal invariant: create
// followed by restore is the identity on the backed-up files' bytes.
func TestCreateRestore_RoundTrip(t *testing.T) {
	project := t.TempDir()
	fileA := filepath.Join(project, "a.py")
	fileB := filepath.Join(project, "sub", "b.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(fileB), 0o755))
	require.NoError(t, os.WriteFile(fileA, []byte("def a():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("def b():\n    pass\n"), 0o644))

	store := New(filepath.Join(project, ".structgraph-backups"))
	id, err := store.Create([]string{fileA, fileB}, project, "extract_function")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Mutate both files after the backup was taken.
	require.NoError(t, os.WriteFile(fileA, []byte("mutated"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("mutated too"), 0o644))

	report, err := store.Restore(id)
	require.NoError(t, err)
	require.Empty(t, report.Errors)
	require.ElementsMatch(t, []string{fileA, fileB}, report.RestoredFiles)

	gotA, err := os.ReadFile(fileA)
	require.NoError(t, err)
	require.Equal(t, "def a():\n    pass\n", string(gotA))

	gotB, err := os.ReadFile(fileB)
	require.NoError(t, err)
	require.Equal(t, "def b():\n    pass\n", string(gotB))
}

func TestCreate_NoFilesIsError(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Create(nil, "/proj", "rename")
	require.Error(t, err)
}

// TestRestore_TamperDetected is spec §4.9: a payload whose bytes no longer
// match its recorded SHA-256 must be reported, not silently restored.
func TestRestore_TamperDetected(t *testing.T) {
	project := t.TempDir()
	file := filepath.Join(project, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("original"), 0o644))

	root := filepath.Join(project, ".structgraph-backups")
	store := New(root)
	id, err := store.Create([]string{file}, project, "inline_variable")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, id, "payload"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	payloadFile := filepath.Join(root, id, "payload", entries[0].Name())
	require.NoError(t, os.WriteFile(payloadFile, []byte("tampered"), 0o644))

	report, err := store.Restore(id)
	require.NoError(t, err)
	require.Empty(t, report.RestoredFiles)
	require.Contains(t, report.Errors, file)
	require.Contains(t, report.Errors[file], "tamper")
}

func TestList_NewestFirst(t *testing.T) {
	project := t.TempDir()
	file := filepath.Join(project, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	store := New(filepath.Join(project, ".structgraph-backups"))
	id1, err := store.Create([]string{file}, project, "first")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	id2, err := store.Create([]string{file}, project, "second")
	require.NoError(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, id2, entries[0].ID)
	require.Equal(t, id1, entries[1].ID)
	require.Equal(t, "second", entries[0].Operation)
}

func TestList_EmptyStoreNotError(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist-yet"))
	entries, err := store.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCleanup_RemovesOlderThanCutoff(t *testing.T) {
	project := t.TempDir()
	file := filepath.Join(project, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	store := New(filepath.Join(project, ".structgraph-backups"))
	_, err := store.Create([]string{file}, project, "old")
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(time.Hour)
	removed, err := store.Cleanup(cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	entries, err := store.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}
