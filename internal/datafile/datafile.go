// Package datafile opens client-side bulk-load files.
//
// A file may be gzip or zstd compressed (by extension), written in a
// character set the server cannot convert, and start with header lines
// to skip. Open stacks the readers needed to hand the server plain rows.
package datafile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/charmap"
)

// Compression names a supported compression format.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DetectCompression infers the compression of path from its extension.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// clientCharsets are MySQL character sets PostgreSQL has no server encoding for.
var clientCharsets = map[string]*charmap.Charmap{
	"macroman": charmap.Macintosh,
	"cp850":    charmap.CodePage850,
	"cp852":    charmap.CodePage852,
}

// ClientDecoder returns the charmap used to transcode files written in
// charset, or nil when the server can convert charset itself.
func ClientDecoder(charset string) *charmap.Charmap {
	return clientCharsets[strings.ToLower(strings.TrimSpace(charset))]
}

// Options controls how Open prepares a file.
type Options struct {
	// CharacterSet is the MySQL character set name of the file. Files in a
	// set with a ClientDecoder are transcoded to UTF-8.
	CharacterSet string

	// SkipLines is the number of leading records to discard.
	SkipLines int

	// LineTerminator separates records. Empty means "\n".
	LineTerminator string
}

// File is an opened data file. Read yields the prepared bytes.
type File struct {
	io.Reader

	// Transcoded is set when the content was converted to UTF-8.
	Transcoded bool

	closers []io.Closer
}

// Close releases the decompressor and the underlying file.
func (f *File) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Open opens path and applies decompression, transcoding and line skipping.
func Open(path string, opts Options) (*File, error) {
	if opts.SkipLines < 0 {
		return nil, fmt.Errorf("negative line skip %d", opts.SkipLines)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	f := &File{Reader: fh, closers: []io.Closer{fh}}

	switch DetectCompression(path) {
	case CompressionGzip:
		zr, err := gzip.NewReader(fh)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip data file %s: %w", path, err)
		}
		f.Reader = zr
		f.closers = append(f.closers, zr)
	case CompressionZstd:
		zr, err := zstd.NewReader(fh)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd data file %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		f.Reader = rc
		f.closers = append(f.closers, rc)
	}

	if cm := ClientDecoder(opts.CharacterSet); cm != nil {
		f.Reader = cm.NewDecoder().Reader(f.Reader)
		f.Transcoded = true
	}

	if opts.SkipLines > 0 {
		br := bufio.NewReader(f.Reader)
		if err := skipLines(br, opts.SkipLines, opts.LineTerminator); err != nil {
			f.Close()
			return nil, fmt.Errorf("skip %d lines of %s: %w", opts.SkipLines, path, err)
		}
		f.Reader = br
	}

	return f, nil
}

// skipLines consumes n records. Reaching EOF early leaves an empty reader.
func skipLines(br *bufio.Reader, n int, terminator string) error {
	if terminator == "" {
		terminator = "\n"
	}
	term := []byte(terminator)
	last := term[len(term)-1]

	for skipped := 0; skipped < n; {
		var line []byte
		for {
			chunk, err := br.ReadBytes(last)
			line = append(line, chunk...)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if bytes.HasSuffix(line, term) {
				break
			}
		}
		skipped++
	}
	return nil
}
