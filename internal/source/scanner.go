package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/ctxburn/internal/usage"
)

const childrenDir = "children"

// ScanDir walks the data directory and discovers all JSONL session exports.
//
// Layout:
//
//	<dir>/<session>.jsonl
//	<dir>/<tool>/<session>.jsonl
//	<dir>/.../<parent>/children/<child>.jsonl
func ScanDir(dataDir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}

		rel, _ := filepath.Rel(dataDir, path)
		parts := strings.Split(rel, string(filepath.Separator))

		df := DiscoveredFile{
			Path:      path,
			SessionID: strings.TrimSuffix(d.Name(), ".jsonl"),
		}
		if len(parts) >= 2 {
			if t := usage.ParseTool(parts[0]); t.Known() {
				df.ToolHint = string(t)
			}
		}
		if n := len(parts); n >= 3 && parts[n-2] == childrenDir {
			df.IsChild = true
			df.ParentSession = parts[n-3]
		}

		files = append(files, df)
		return nil
	})

	return files, err
}

// CountTools returns the number of distinct tool directories in a set of
// discovered files. Files outside a tool directory count as one group.
func CountTools(files []DiscoveredFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[f.ToolHint] = struct{}{}
	}
	return len(seen)
}
