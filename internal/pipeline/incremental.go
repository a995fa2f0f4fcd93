package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theirongolddev/ctxburn/internal/source"
	"github.com/theirongolddev/ctxburn/internal/store"
)

// CachedLoadResult extends LoadResult with cache metadata.
type CachedLoadResult struct {
	LoadResult
	CacheHits int
	Reparsed  int
	Removed   int
}

// LoadWithCache discovers, diffs against cache, parses only changed files,
// and returns the combined result set. Files that vanished since the last
// run are dropped from the cache.
func LoadWithCache(dataDir string, cache *store.Cache, progressFn ProgressFunc) (*CachedLoadResult, error) {
	files, err := source.ScanDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dataDir, err)
	}

	result := &CachedLoadResult{
		LoadResult: LoadResult{
			TotalFiles: len(files),
			ToolCount:  source.CountTools(files),
		},
	}

	tracked, err := cache.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	// Diff: partition into changed and unchanged
	var toReparse []source.DiscoveredFile
	unchanged := make(map[string]struct{})
	present := make(map[string]struct{}, len(files))

	for _, f := range files {
		present[f.Path] = struct{}{}
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}

		cached, ok := tracked[f.Path]
		if ok && cached.MtimeNs == info.ModTime().UnixNano() && cached.SizeBytes == info.Size() {
			unchanged[f.Path] = struct{}{}
		} else {
			toReparse = append(toReparse, f)
		}
	}

	for path := range tracked {
		if _, ok := present[path]; ok {
			continue
		}
		if err := cache.DeleteFileTracker(path); err != nil {
			return nil, fmt.Errorf("pruning %s: %w", path, err)
		}
		result.Removed++
	}

	if len(unchanged) > 0 {
		cached, err := cache.LoadAllSessions()
		if err != nil {
			return nil, fmt.Errorf("loading cached sessions: %w", err)
		}
		for _, s := range cached {
			if _, ok := unchanged[s.FilePath]; ok {
				result.Sessions = append(result.Sessions, s)
				result.ParsedFiles++
				delete(unchanged, s.FilePath)
			}
		}
		// A tracked file whose session is gone from the cache is parsed again.
		for _, f := range files {
			if _, ok := unchanged[f.Path]; ok {
				toReparse = append(toReparse, f)
			}
		}
	}

	result.CacheHits = result.ParsedFiles
	result.Reparsed = len(toReparse)

	if len(toReparse) == 0 {
		return result, nil
	}

	results := parseAll(toReparse, func(n int) {
		if progressFn != nil {
			progressFn(n+result.CacheHits, result.TotalFiles)
		}
	})

	for i, pr := range results {
		if pr.Err != nil {
			result.FileErrors++
			continue
		}
		result.ParsedFiles++
		result.ParseErrors += pr.ParseErrors

		if !hasContent(pr.Session) {
			continue
		}
		result.Sessions = append(result.Sessions, pr.Session)

		info, err := os.Stat(toReparse[i].Path)
		if err == nil {
			_ = cache.SaveSession(pr.Session, info.ModTime().UnixNano(), info.Size())
		}
	}

	return result, nil
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ctxburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "ctxburn")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "sessions.db")
}
