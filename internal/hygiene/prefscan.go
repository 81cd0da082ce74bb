package hygiene

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Preference files occasionally point the renderer's disk cache at a custom
// location. The scan is a heuristic: it looks for absolute paths near
// cache-related keys and keeps only directories that actually exist.
var (
	cacheHintRe = regexp.MustCompile(`(?i)(?:disk\s*cache|cache).{0,200}?(/[^"\n\r]+)`)
	absPathRe   = regexp.MustCompile(`/(?:Users|Volumes|private)/[^\s"']+`)
)

const prefScanMaxFileSize = 4 << 20

// PrefScanLocator discovers custom disk-cache directories by scanning the
// worker's preference files under root.
func PrefScanLocator(root string) CacheLocator {
	return func() []string {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return nil
		}

		found := map[string]bool{}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !prefFileExt(d.Name()) {
				return nil
			}
			if fi, err := d.Info(); err != nil || fi.Size() > prefScanMaxFileSize {
				return nil
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			text := string(raw)

			for _, m := range cacheHintRe.FindAllStringSubmatch(text, -1) {
				addIfCacheDir(found, m[1], false)
			}
			for _, m := range absPathRe.FindAllString(text, -1) {
				addIfCacheDir(found, m, true)
			}
			return nil
		})

		out := make([]string, 0, len(found))
		for p := range found {
			out = append(out, p)
		}
		sort.Strings(out)
		return out
	}
}

func addIfCacheDir(found map[string]bool, candidate string, requireCacheName bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return
	}
	if requireCacheName && !strings.Contains(strings.ToLower(candidate), "cache") {
		return
	}
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		found[candidate] = true
	}
}

func prefFileExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".plist", ".xml", ".json":
		return true
	}
	return false
}
