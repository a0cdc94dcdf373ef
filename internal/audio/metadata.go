// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the subset of file tags shown alongside a spectrum.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
	Track  int
	Format string
}

// ReadMetadata reads ID3 or RIFF INFO tags from the file at path.
func ReadMetadata(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading tags of %s: %w", path, err)
	}

	meta := Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
		Year:   m.Year(),
	}
	meta.Track, _ = m.Track()
	if format := m.Format(); format != tag.UnknownFormat {
		meta.Format = string(format)
	}
	return meta, nil
}

// String formats the metadata as "Artist - Title".
func (m Metadata) String() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
