// Package tags embeds metadata into finished audio downloads. Only ID3 is
// handled here: containers without ID3 support are skipped silently, since
// retagging them would require a re-encode and this pipeline only copies
// streams.
package tags

import (
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
)

// Apply writes title and artist frames into an .mp3 file. Other extensions
// are a no-op. Callers treat failures as advisory; tagging never decides a
// download's fate.
func Apply(path, title, artist string) error {
	if strings.ToLower(filepath.Ext(path)) != ".mp3" {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	return tag.Save()
}
