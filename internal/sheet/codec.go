// Package sheet converts between spreadsheet workbooks and row datasets.
//
// Decoding reads the first worksheet, takes its first row as the header and
// turns every following non-blank row into a model.Row keyed by header name.
// Encoding writes a single worksheet with a header row in column order.
package sheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetlens/internal/model"
)

// ContentType is the MIME type of encoded workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultSheetName names the worksheet written by Encode when none is given.
const DefaultSheetName = "Analysis"

var (
	ErrUnsupportedExtension = errors.New("please upload only Excel files (.xlsx or .xls)")
	ErrUnreadable           = errors.New("error reading file")
	ErrNoRows               = errors.New("spreadsheet has no data rows")
	ErrTooManyRows          = errors.New("spreadsheet exceeds the row limit")
)

var extensions = []string{".xlsx", ".xls"}

// CheckExtension returns ErrUnsupportedExtension unless name ends in a
// recognized spreadsheet extension (case-insensitive).
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return nil
		}
	}
	return ErrUnsupportedExtension
}

// DecodeOptions tunes Decode. The zero value has no row limit.
type DecodeOptions struct {
	MaxRows int
}

// Decode parses workbook bytes into a dataset. It either returns every row of
// the first sheet or an error; it never returns partial data.
func Decode(r io.Reader, opts DecodeOptions) (model.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return model.Dataset{}, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}
	name := sheets[0]

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(raw) < 2 {
		return model.Dataset{}, ErrNoRows
	}

	h := newHeader(raw[0])
	rows := make([]model.Row, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		row := model.Row{}
		for j, cell := range cells {
			if cell == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return model.Dataset{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
			}
			typ, err := f.GetCellType(name, axis)
			if err != nil {
				return model.Dataset{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
			}
			row[h.name(j)] = cellValue(cell, typ)
		}
		if len(row) == 0 {
			continue
		}
		if opts.MaxRows > 0 && len(rows) == opts.MaxRows {
			return model.Dataset{}, fmt.Errorf("%w (%d)", ErrTooManyRows, opts.MaxRows)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return model.Dataset{}, ErrNoRows
	}
	return model.NewDataset(h.names, rows), nil
}

// Encode writes ds as a single-sheet xlsx workbook.
func Encode(ds model.Dataset, sheetName string) ([]byte, error) {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range ds.Rows {
		vals := make([]interface{}, len(ds.Columns))
		for j, c := range ds.Columns {
			vals[j] = exportValue(row[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// header assigns unique keys to header cells. Blank headers become
// __EMPTY, __EMPTY_1, ... and repeated names get a _1, _2 suffix.
type header struct {
	names []string
	used  map[string]int
	empty int
}

func newHeader(cells []string) *header {
	h := &header{used: map[string]int{}}
	for _, c := range cells {
		h.add(strings.TrimSpace(c))
	}
	return h
}

func (h *header) add(base string) {
	if base == "" {
		base = "__EMPTY"
		if h.empty > 0 {
			base = fmt.Sprintf("__EMPTY_%d", h.empty)
		}
		h.empty++
	}
	name := base
	if n, ok := h.used[base]; ok {
		for {
			n++
			name = fmt.Sprintf("%s_%d", base, n)
			if _, taken := h.used[name]; !taken {
				break
			}
		}
		h.used[base] = n
	}
	h.used[name] = 0
	h.names = append(h.names, name)
}

// name returns the key for column index j, growing the header for rows that
// are wider than it.
func (h *header) name(j int) string {
	for len(h.names) <= j {
		h.add("")
	}
	return h.names[j]
}

func cellValue(raw string, typ excelize.CellType) any {
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula, excelize.CellTypeDate:
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return numberOf(f)
		}
	}
	return raw
}

func exportValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return x
	}
}

func numberOf(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}
