package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

// DiscoverDocuments walks root for Markdown files, skipping hidden entries when asked.
// Byte-identical copies of an earlier file are reported as deduplicated and left out
// of paths. paths is sorted.
func DiscoverDocuments(root string, skipHidden bool) ([]string, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, fmt.Errorf("%w: input directory is required", common.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, DirStats{}, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, nil, DirStats{}, fmt.Errorf("%w: %s is not a directory", common.ErrInvalidInput, root)
	}

	var (
		results []FileResult
		stats   DirStats
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		results = append(results, FileResult{Path: path})
		return nil
	})
	if err != nil {
		return nil, results, stats, fmt.Errorf("walk: %w", err)
	}

	paths := dedupe(results, &stats)
	return paths, results, stats, nil
}

// ExpandInputs accepts a mix of files and directories. Files are taken as given
// whatever their extension; directories are walked with DiscoverDocuments.
func ExpandInputs(inputs []string, skipHidden bool) ([]string, []FileResult, DirStats, error) {
	var (
		results []FileResult
		stats   DirStats
	)
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		if !info.IsDir() {
			stats.Scanned++
			stats.Matched++
			results = append(results, FileResult{Path: in})
			continue
		}
		_, rs, st, err := DiscoverDocuments(in, skipHidden)
		if err != nil {
			return nil, nil, stats, err
		}
		for _, r := range rs {
			r.Deduplicated, r.DuplicateOf = false, ""
			results = append(results, r)
		}
		stats.Scanned += st.Scanned
		stats.Matched += st.Matched
		stats.Failed += st.Failed
	}
	stats.Succeeded, stats.Deduplicated = 0, 0
	paths := dedupe(results, &stats)
	return paths, results, stats, nil
}

// dedupe hashes every matched result in path order and returns the sorted unique paths.
func dedupe(results []FileResult, stats *DirStats) []string {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	first := make(map[string]string)
	var paths []string
	for i := range results {
		r := &results[i]
		if r.Err != "" {
			continue
		}
		if r.HashHex == "" {
			sum, size, err := hashFile(r.Path)
			if err != nil {
				r.Err = err.Error()
				stats.Failed++
				continue
			}
			r.HashHex, r.Size = sum, size
		}
		sum := r.HashHex
		if prev, ok := first[sum]; ok {
			r.Deduplicated, r.DuplicateOf = true, prev
			stats.Deduplicated++
			continue
		}
		first[sum] = r.Path
		stats.Succeeded++
		paths = append(paths, r.Path)
	}
	return paths
}
