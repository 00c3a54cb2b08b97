package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// jsonDecoder reads an array of objects, the shape the upload UI posts.
type jsonDecoder struct{}

func (jsonDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json")
}

func (jsonDecoder) Decode(name string, src io.Reader, opt DecodeOptions) (*Dataset, error) {
	var rows []*Row
	if err := json.NewDecoder(src).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json rows: %w", err)
	}
	ds := &Dataset{Name: name}
	lim := rowLimiter{max: opt.MaxRows}
	for _, r := range rows {
		if r == nil || !lim.admit() {
			continue
		}
		ds.Rows = append(ds.Rows, r)
	}
	lim.warn(ds)
	return ds, nil
}
