package decoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Info holds the descriptive metadata of an audio file.
type Info struct {
	Path   string
	Title  string
	Artist string
	Album  string
	Year   int
	Track  int
	Size   int64
}

// ReadInfo reads tag metadata from path. Files without readable tags still
// produce an Info titled after the file name.
func ReadInfo(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer f.Close()

	info := &Info{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	if st, err := f.Stat(); err == nil {
		info.Size = st.Size()
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		return info, nil //nolint:nilerr // untagged files are common
	}

	if t := strings.TrimSpace(m.Title()); t != "" {
		info.Title = t
	}
	info.Artist = m.Artist()
	if info.Artist == "" {
		info.Artist = m.AlbumArtist()
	}
	info.Album = m.Album()
	info.Year = m.Year()
	info.Track, _ = m.Track()
	return info, nil
}

// Label formats the info as "Artist - Title", or just the title.
func (i *Info) Label() string {
	if i == nil {
		return ""
	}
	if i.Artist == "" {
		return i.Title
	}
	return i.Artist + " - " + i.Title
}
