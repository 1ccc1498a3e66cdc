package autocomplete

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
)

const DefaultLimit = 25

// VideoExtensions are the file suffixes offered as playlist candidates.
var VideoExtensions = []string{".mp4", ".mkv", ".webm", ".mov", ".avi", ".m4v", ".ts", ".mpg", ".mpeg"}

func isVideo(name string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(name)))
}

// SuggestPaths lists directories and video files whose path starts with
// prefix. A prefix ending in a separator lists that directory. Directories
// come first and carry a trailing separator.
func SuggestPaths(fs afero.Fs, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	dir, base := filepath.Split(prefix)
	if dir == "" {
		dir = "."
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	matches := lo.Filter(entries, func(fi os.FileInfo, _ int) bool {
		name := fi.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".") {
			return false
		}
		return strings.HasPrefix(name, base) && (fi.IsDir() || isVideo(name))
	})
	slices.SortStableFunc(matches, func(a, b os.FileInfo) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name(), b.Name())
	})

	out := lo.Map(matches, func(fi os.FileInfo, _ int) string {
		p := filepath.Join(dir, fi.Name())
		if fi.IsDir() {
			p += string(filepath.Separator)
		}
		return p
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
