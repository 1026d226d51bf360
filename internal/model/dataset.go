package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotScalar is returned when a row carries a nested object or array value.
var ErrNotScalar = errors.New("row values must be scalars")

// Row maps a column name to a scalar value: string, json.Number, float64, bool or nil.
type Row map[string]any

// Dataset is an ordered table of rows. Columns keeps the first-seen order of
// keys across rows, since Row itself is unordered.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset builds a Dataset from rows, deriving column order from firstOrder
// and then from any keys that only appear in later rows (sorted).
func NewDataset(firstOrder []string, rows []Row) Dataset {
	ds := Dataset{Rows: rows}
	seen := make(map[string]struct{}, len(firstOrder))
	for _, c := range firstOrder {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		ds.Columns = append(ds.Columns, c)
	}
	var extra []string
	for _, r := range rows {
		for k := range r {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	ds.Columns = append(ds.Columns, extra...)
	return ds
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether name is one of the dataset's columns.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FirstRowKeys returns the columns present in the first row, in column order.
// These are the keys a user may choose chart axes from.
func (d Dataset) FirstRowKeys() []string {
	if len(d.Rows) == 0 {
		return nil
	}
	first := d.Rows[0]
	keys := make([]string, 0, len(first))
	for _, c := range d.Columns {
		if _, ok := first[c]; ok {
			keys = append(keys, c)
		}
	}
	return keys
}

// IsScalar reports whether v can be stored as a cell value.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the dataset as an array of objects whose keys follow Columns.
func (d Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range d.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		n := 0
		write := func(k string, v any) error {
			if n > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			vb, err := json.Marshal(v)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
			n++
			return nil
		}
		for _, c := range d.Columns {
			v, ok := row[c]
			if !ok {
				continue
			}
			if err := write(c, v); err != nil {
				return nil, err
			}
		}
		if n < len(row) {
			var rest []string
			for k := range row {
				if !d.HasColumn(k) {
					rest = append(rest, k)
				}
			}
			sort.Strings(rest)
			for _, k := range rest {
				if err := write(k, row[k]); err != nil {
					return nil, err
				}
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an array of flat objects, recording key order as it goes.
// Numbers are kept as json.Number so values survive a round trip unchanged.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Dataset{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return err
	}
	var (
		columns []string
		rows    []Row
		seen    = map[string]struct{}{}
	)
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("row %d: %w", len(rows), err)
		}
		row := Row{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("row %d: unexpected token %v", len(rows), tok)
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return err
			}
			if !IsScalar(v) {
				return fmt.Errorf("row %d column %q: %w", len(rows), key, ErrNotScalar)
			}
			row[key] = v
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return err
	}
	d.Columns = columns
	d.Rows = rows
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
