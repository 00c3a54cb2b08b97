package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type csvDecoder struct{}

func (csvDecoder) CanDecode(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvDecoder) Decode(name string, src io.Reader, opt DecodeOptions) (*Dataset, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	ds := &Dataset{Name: name}
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ds, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = normalizeHeader(header)
	lim := rowLimiter{max: opt.MaxRows}
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		if !lim.admit() {
			continue
		}
		ds.Rows = append(ds.Rows, recordToRow(header, rec, opt.DynamicTyping))
	}
	lim.warn(ds)
	return ds, nil
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}

// normalizeHeader trims names and fills blanks so every column stays addressable.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, name := range h {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// recordToRow maps one record onto the header. Short records leave trailing keys absent.
func recordToRow(header, rec []string, dynamic bool) *Row {
	row := NewRow(len(header))
	for i, key := range header {
		if i >= len(rec) {
			break
		}
		row.Set(key, cellValue(rec[i], dynamic))
	}
	return row
}

func cellValue(raw string, dynamic bool) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	if dynamic {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return Number(f)
		}
	}
	return Text(s)
}
