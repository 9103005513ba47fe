package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// resolveImage turns an --image argument into a single file path. Plain
// paths pass through; glob patterns (including **) pick the most recently
// modified match, which is usually the photo just taken.
func resolveImage(arg string) (string, error) {
	arg = expandHome(arg)
	if !strings.ContainsAny(arg, "*?[{") {
		return arg, nil
	}

	base, pattern := doublestar.SplitPattern(filepath.ToSlash(arg))
	fsys := os.DirFS(base)

	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", arg, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no files match %q", arg)
	}

	var (
		newest     string
		newestTime int64
	)
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			continue
		}
		if mt := info.ModTime().UnixNano(); newest == "" || mt > newestTime {
			newest, newestTime = m, mt
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no readable files match %q", arg)
	}

	return filepath.Join(filepath.FromSlash(base), filepath.FromSlash(newest)), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
