package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches knowledge-base dumps under a directory.
const DefaultPattern = "**/*.{json,jsonl}"

// Discover resolves path to the list of dump files. A file path is returned
// as is; a directory is searched with pattern.
func Discover(path, pattern string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	if pattern == "" {
		pattern = DefaultPattern
	}

	matches, err := doublestar.Glob(os.DirFS(path), pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %s in %s: %w", pattern, path, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(path, filepath.FromSlash(m)))
	}
	sort.Strings(files)
	return files, nil
}
