package fingerprint

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifExtractor reads the EXIF block of an image and serializes its tags.
// Two encodings of the same photo carry the same tags and so hash alike.
type ExifExtractor struct{}

// Extract decodes EXIF data from path and returns the tags as JSON.
func (ExifExtractor) Extract(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMetadata, err)
	}

	blob, err := x.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode exif: %w", err)
	}
	return blob, nil
}
