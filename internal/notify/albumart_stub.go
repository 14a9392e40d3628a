//go:build !linux

package notify

func albumArtPath(_ string) string {
	return ""
}
