// Package pipeline ties decoding, feature extraction, statistics and record
// materialization into the batch jobs run by qwop-prep.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
)

// DiscoverFiles lists the files directly inside each of dirs whose extension
// is one of exts. The result is sorted and free of duplicates. A directory
// that cannot be read is an error naming it; finding no files at all is
// qwop.ErrEmptyDataset.
func DiscoverFiles(fsys fsutil.FileSystem, dirs, exts []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, dir := range dirs {
		files, err := fsutil.ListFiles(fsys, dir, exts)
		if err != nil {
			return nil, fmt.Errorf("list input dir %s: %w", dir, err)
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no %v files in %v: %w", exts, dirs, qwop.ErrEmptyDataset)
	}
	sort.Strings(out)
	return out, nil
}
