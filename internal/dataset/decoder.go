package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DecodeOptions controls how raw files become rows.
type DecodeOptions struct {
	// Delimiter for CSV. If 0, ',' is used (or '\t' for .tsv names).
	Delimiter rune
	// DynamicTyping turns cells that parse as finite numbers into Number values.
	DynamicTyping bool
	// MaxRows limits rows kept; 0 means unlimited.
	MaxRows int
	// XLSX sheet selection. SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// DefaultDecodeOptions mirrors what the upload path expects.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{DynamicTyping: true, SheetIndex: 1}
}

// Decoder turns a raw container format into rows.
type Decoder interface {
	CanDecode(filename string) bool
	Decode(name string, r io.Reader, opt DecodeOptions) (*Dataset, error)
}

var registry []Decoder

// Register adds a decoder implementation to the registry.
func Register(d Decoder) {
	registry = append(registry, d)
}

// ErrUnsupported indicates no decoder accepted the input.
var ErrUnsupported = errors.New("unsupported dataset format")

// DecodeBytes selects a decoder by filename and decodes data.
// Unknown extensions fall back to CSV.
func DecodeBytes(filename string, data []byte, opt DecodeOptions) (*Dataset, error) {
	name := filepath.Base(filename)
	for _, d := range registry {
		if d.CanDecode(name) {
			return d.Decode(name, bytes.NewReader(data), opt)
		}
	}
	ds, err := csvDecoder{}.Decode(name, bytes.NewReader(data), opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, name, err)
	}
	return ds, nil
}

// DecodeFile reads path from disk and decodes it.
func DecodeFile(path string, opt DecodeOptions) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return DecodeBytes(path, data, opt)
}

func init() {
	Register(csvDecoder{})
	Register(xlsxDecoder{})
	Register(jsonDecoder{})
}

// rowLimiter applies MaxRows and records the truncation warning.
type rowLimiter struct {
	max   int
	total int
}

func (l *rowLimiter) admit() bool {
	l.total++
	return l.max <= 0 || l.total <= l.max
}

func (l *rowLimiter) warn(ds *Dataset) {
	if l.max > 0 && l.total > l.max {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", l.max, l.total))
	}
}
