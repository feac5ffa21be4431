package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// CompressedSuffix marks report files written as LZ4 frames.
const CompressedSuffix = ".lz4"

type compressedFile struct {
	*lz4.Writer
	file *os.File
}

func (c *compressedFile) Close() error {
	return errors.Join(c.Writer.Close(), c.file.Close())
}

// Create creates the report file at path. Paths ending in .lz4 are
// compressed transparently.
func Create(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	if !strings.HasSuffix(path, CompressedSuffix) {
		return file, nil
	}

	return &compressedFile{Writer: lz4.NewWriter(file), file: file}, nil
}

type compressedReader struct {
	io.Reader
	file *os.File
}

func (c *compressedReader) Close() error {
	return c.file.Close()
}

// Open opens a report file written by Create.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}

	if !strings.HasSuffix(path, CompressedSuffix) {
		return file, nil
	}

	return &compressedReader{Reader: lz4.NewReader(file), file: file}, nil
}

// FormatFromPath infers the output format from a file extension, ignoring a
// trailing .lz4.
func FormatFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(path, CompressedSuffix))) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".txt":
		return FormatTable, true
	default:
		return "", false
	}
}
