package datafile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func readAll(t *testing.T, path string, opts Options) (string, *File) {
	t.Helper()
	f, err := Open(path, opts)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data), f
}

func TestDetectCompression(t *testing.T) {
	tests := map[string]Compression{
		"rows.csv":     CompressionNone,
		"rows.csv.gz":  CompressionGzip,
		"ROWS.GZIP":    CompressionGzip,
		"rows.csv.zst": CompressionZstd,
		"rows.zstd":    CompressionZstd,
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectCompression(path), path)
	}
}

func TestOpen_Plain(t *testing.T) {
	path := writeFile(t, "rows.csv", []byte("1,a\n2,b\n"))
	got, f := readAll(t, path, Options{})
	assert.Equal(t, "1,a\n2,b\n", got)
	assert.False(t, f.Transcoded)
}

func TestOpen_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("1,a\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, _ := readAll(t, writeFile(t, "rows.csv.gz", buf.Bytes()), Options{})
	assert.Equal(t, "1,a\n", got)
}

func TestOpen_Zstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte("1,a\n2,b\n"), nil)
	require.NoError(t, enc.Close())

	got, _ := readAll(t, writeFile(t, "rows.csv.zst", data), Options{SkipLines: 1})
	assert.Equal(t, "2,b\n", got)
}

func TestOpen_CorruptGzip(t *testing.T) {
	_, err := Open(writeFile(t, "rows.gz", []byte("not gzip")), Options{})
	assert.Error(t, err)
}

func TestOpen_Transcodes(t *testing.T) {
	encoded, err := charmap.Macintosh.NewEncoder().String("1,café\n")
	require.NoError(t, err)

	got, f := readAll(t, writeFile(t, "rows.csv", []byte(encoded)), Options{CharacterSet: "MacRoman"})
	assert.Equal(t, "1,café\n", got)
	assert.True(t, f.Transcoded)
}

func TestOpen_SkipLines(t *testing.T) {
	tests := []struct {
		name string
		data string
		opts Options
		want string
	}{
		{"one header", "h1,h2\n1,a\n", Options{SkipLines: 1}, "1,a\n"},
		{"two headers", "h\nh\n1,a\n", Options{SkipLines: 2}, "1,a\n"},
		{"crlf terminator", "h\r\n1,a\r\n", Options{SkipLines: 1, LineTerminator: "\r\n"}, "1,a\r\n"},
		{"multi-byte terminator not split on partial match", "a;b;;c;;", Options{SkipLines: 1, LineTerminator: ";;"}, "c;;"},
		{"more skips than lines", "h\n", Options{SkipLines: 5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := readAll(t, writeFile(t, "rows.csv", []byte(tt.data)), tt.opts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(writeFile(t, "rows.csv", nil), Options{SkipLines: -1})
	assert.Error(t, err)
}

func TestClientDecoder(t *testing.T) {
	assert.NotNil(t, ClientDecoder("cp850"))
	assert.Nil(t, ClientDecoder("utf8mb4"))
	assert.Nil(t, ClientDecoder("latin1"))
}
