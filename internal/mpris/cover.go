//go:build linux

package mpris

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// coverNames lists album art base names in priority order.
var coverNames = []string{"cover", "folder", "album", "front"}

var coverExts = []string{".jpg", ".jpeg", ".png"}

// FindAlbumArt looks for album art next to the track. Names match
// case-insensitively, so Cover.JPG is found too. Returns "" when none exists.
func FindAlbumArt(trackPath string) string {
	dir := filepath.Dir(trackPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	best, bestRank := "", len(coverNames)*len(coverExts)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		ei := slices.Index(coverExts, ext)
		ni := slices.Index(coverNames, strings.TrimSuffix(name, ext))
		if ei < 0 || ni < 0 {
			continue
		}
		if rank := ni*len(coverExts) + ei; rank < bestRank {
			best, bestRank = filepath.Join(dir, e.Name()), rank
		}
	}
	return best
}
