package release

import "path/filepath"

func defaultGlob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}
