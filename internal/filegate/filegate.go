// Package filegate implements the File Gate (C3): a pure computation over
// the filesystem and config that decides which files are eligible for a
// given analysis.
package filegate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"structgraph/internal/logging"
)

// DefaultExcludedDirs mirrors spec §4.3's non-exhaustive default list.
var DefaultExcludedDirs = []string{
	"node_modules", "__pycache__", ".git", "dist", "build", ".venv", "venv",
}

// LanguageExtensions maps a language name to its recognized file
// extensions. Callers may extend this via Config.CustomExtensions.
var LanguageExtensions = map[string][]string{
	"python":     {".py"},
	"javascript": {".js", ".jsx", ".mjs"},
	"typescript": {".ts", ".tsx"},
	"go":         {".go"},
	"java":       {".java"},
	"rust":       {".rs"},
}

// Config parameterizes one Gate call.
type Config struct {
	ProjectRoot       string
	Language          string
	IncludeGlobs      []string
	ExcludeGlobs      []string
	MaxSizeBytes      int64
	ExcludedDirs      []string // overrides DefaultExcludedDirs when non-nil
	CustomExtensions  []string // overrides LanguageExtensions[Language] when non-nil
}

const defaultMaxSizeBytes = 1 << 20 // 1 MiB

// Gate walks cfg.ProjectRoot and returns the ordered (lexicographic over
// canonicalized paths) list of eligible absolute paths. An empty result is
// a valid, non-error outcome.
func Gate(cfg Config) ([]string, error) {
	excludedDirs := cfg.ExcludedDirs
	if excludedDirs == nil {
		excludedDirs = DefaultExcludedDirs
	}
	excludedSet := make(map[string]struct{}, len(excludedDirs))
	for _, d := range excludedDirs {
		excludedSet[d] = struct{}{}
	}

	extensions := cfg.CustomExtensions
	if extensions == nil {
		extensions = LanguageExtensions[strings.ToLower(cfg.Language)]
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxSizeBytes
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}

	var out []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.FileGateDebug("skipping unreadable path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != root {
				if _, excluded := excludedSet[d.Name()]; excluded {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if len(extSet) > 0 {
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := extSet[ext]; !ok {
				return nil
			}
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if len(cfg.IncludeGlobs) > 0 && !matchesAny(cfg.IncludeGlobs, rel, path) {
			return nil
		}
		if matchesAny(cfg.ExcludeGlobs, rel, path) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			logging.FileGateDebug("skipping unstat-able file %s: %v", path, statErr)
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}

		out = append(out, path)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Strings(out)
	return out, nil
}

func matchesAny(globs []string, rel, abs string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(g, abs); ok {
			return true
		}
		if ok, _ := filepath.Match(g, filepath.Base(abs)); ok {
			return true
		}
	}
	return false
}
