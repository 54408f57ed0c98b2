package registry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	templateSuffix  = ".definition."
	templatePattern = "**/*.definition.{yaml,yml,json}"
	namingPattern   = "**/*.naming.{yaml,yml}"
)

// discover returns the files matching pattern under every root, sorted and
// without duplicates. Missing roots are ignored.
func discover(roots []string, pattern string) ([]string, error) {
	var out []string
	for _, root := range roots {
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(filepath.Clean(root), pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// isRegistryFile reports whether path names a template or a naming file.
func isRegistryFile(path string) bool {
	base := filepath.Base(path)
	for _, p := range []string{templatePattern, namingPattern} {
		if ok, _ := doublestar.Match(p[len("**/"):], base); ok {
			return true
		}
	}
	return false
}
