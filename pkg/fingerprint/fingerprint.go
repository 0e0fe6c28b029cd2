package fingerprint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cenkalti/log"
)

const (
	// DefaultBlockSize is the read size for content hashing and the size of the
	// block hashed by the Block strategy.
	DefaultBlockSize = 8 * 1024
	// MinMetadataLen is the shortest metadata blob accepted as real metadata.
	MinMetadataLen = 16
)

// ErrNoMetadata is returned by extractors when a file carries no usable metadata.
var ErrNoMetadata = errors.New("no metadata")

// Extractor produces a metadata blob for a file.
type Extractor interface {
	Extract(path string) ([]byte, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(path string) ([]byte, error)

// Extract calls f(path).
func (f ExtractorFunc) Extract(path string) ([]byte, error) {
	return f(path)
}

// Fingerprinter feeds strategy-selected bytes of a file into a hash.
type Fingerprinter struct {
	blockSize int
	extractor Extractor
}

// Option configures a Fingerprinter.
type Option func(*Fingerprinter)

// WithBlockSize sets the block size. Non-positive values keep the default.
func WithBlockSize(n int) Option {
	return func(f *Fingerprinter) {
		if n > 0 {
			f.blockSize = n
		}
	}
}

// WithExtractor sets the metadata extractor used by the Metadata strategy.
func WithExtractor(e Extractor) Option {
	return func(f *Fingerprinter) {
		if e != nil {
			f.extractor = e
		}
	}
}

// New creates a Fingerprinter. The default extractor reads EXIF data.
func New(opts ...Option) *Fingerprinter {
	f := &Fingerprinter{
		blockSize: DefaultBlockSize,
		extractor: ExifExtractor{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feed writes the bytes selected by strategy into w and returns the strategy
// that was actually applied. Metadata degrades to Content when extraction
// fails or yields too few bytes; all other failures are returned.
func (f *Fingerprinter) Feed(w io.Writer, path string, strategy Strategy) (Strategy, error) {
	switch strategy {
	case Content:
		return Content, f.feedContent(w, path, false)
	case Block:
		return Block, f.feedContent(w, path, true)
	case Name:
		if _, err := os.Stat(path); err != nil {
			return Name, err
		}
		_, err := io.WriteString(w, filepath.Base(path))
		return Name, err
	case Date:
		info, err := os.Stat(path)
		if err != nil {
			return Date, err
		}
		_, err = io.WriteString(w, filepath.Base(path)+modTimeString(info))
		return Date, err
	case Metadata:
		blob, err := f.extract(path)
		if err != nil {
			log.Debugf("metadata unavailable for %s, hashing content: %v", path, err)
			return Content, f.feedContent(w, path, false)
		}
		_, err = w.Write(blob)
		return Metadata, err
	}
	return strategy, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
}

func (f *Fingerprinter) extract(path string) ([]byte, error) {
	blob, err := f.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	if len(blob) < MinMetadataLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrNoMetadata, len(blob))
	}
	return blob, nil
}

func (f *Fingerprinter) feedContent(w io.Writer, path string, firstBlockOnly bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, f.blockSize)
	for {
		n, err := io.ReadFull(file, buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return err
		}
		if firstBlockOnly {
			return nil
		}
	}
}

// modTimeString renders the modification time as seconds since the epoch.
func modTimeString(info os.FileInfo) string {
	secs := float64(info.ModTime().UnixNano()) / 1e9
	return strconv.FormatFloat(secs, 'f', -1, 64)
}
