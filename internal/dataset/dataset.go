package dataset

// Dataset is a sequence of rows sharing the column set of the first row.
// Rows may omit keys; an absent key reads as missing.
type Dataset struct {
	Name     string
	Rows     []*Row
	Warnings []string
}

// New wraps rows into a dataset.
func New(name string, rows ...*Row) *Dataset {
	return &Dataset{Name: name, Rows: rows}
}

// Len returns the row count.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Columns returns the first row's keys, or nil for an empty dataset.
func (d *Dataset) Columns() []string {
	if d.Len() == 0 {
		return nil
	}
	return d.Rows[0].Keys()
}

// Column returns one column's values in row order.
func (d *Dataset) Column(name string) []Value {
	out := make([]Value, d.Len())
	for i, r := range d.Rows {
		out[i] = r.Value(name)
	}
	return out
}

// Clone deep-copies rows so callers can mutate the copy freely.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := &Dataset{Name: d.Name, Rows: make([]*Row, len(d.Rows))}
	for i, r := range d.Rows {
		c.Rows[i] = r.Clone()
	}
	if len(d.Warnings) > 0 {
		c.Warnings = append([]string(nil), d.Warnings...)
	}
	return c
}

// Head returns up to n rows rendered as strings in column order.
func (d *Dataset) Head(n int) [][]string {
	if n <= 0 || d.Len() == 0 {
		return nil
	}
	if n > d.Len() {
		n = d.Len()
	}
	cols := d.Columns()
	out := make([][]string, 0, n)
	for _, r := range d.Rows[:n] {
		line := make([]string, len(cols))
		for j, c := range cols {
			line[j] = r.Value(c).String()
		}
		out = append(out, line)
	}
	return out
}
