//go:build linux

package notify

import "github.com/llehouerou/murmur/internal/mpris"

func albumArtPath(trackPath string) string {
	return mpris.FindAlbumArt(trackPath)
}
