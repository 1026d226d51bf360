package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sheetlens/internal/chart"
	"sheetlens/internal/model"
)

// SaveInput is the request body of a save.
type SaveInput struct {
	FileName     string             `json:"fileName" validate:"max=255"`
	Data         model.Dataset      `json:"data" swaggertype:"array,object"`
	ChartType    model.ChartType    `json:"chartType" validate:"required,oneof=2d 3d"`
	SelectedAxes model.SelectedAxes `json:"selectedAxes"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateSave checks in against the row limit (0 disables it) and returns a
// *ValidationError naming every rejected field.
func validateSave(in SaveInput, maxRows int) error {
	verr := &ValidationError{}

	if err := validate.Struct(in); err != nil {
		var fes validator.ValidationErrors
		if !errors.As(err, &fes) {
			return err
		}
		for _, fe := range fes {
			verr.add(fe.Field(), tagMessage(fe))
		}
	}

	if strings.ContainsRune(in.FileName, 0) {
		verr.add("fileName", nulMessage)
	}

	switch n := in.Data.Len(); {
	case n == 0:
		verr.add("data", "must contain at least one row")
	case maxRows > 0 && n > maxRows:
		verr.add("data", fmt.Sprintf("must contain at most %d rows", maxRows))
	}

	if hasNUL(in.Data) {
		verr.add("data", nulMessage)
	}

	if in.Data.Len() > 0 && in.ChartType.Valid() {
		if err := chart.CheckAxes(in.Data, in.ChartType, in.SelectedAxes); err != nil {
			var ae *chart.AxisError
			if errors.As(err, &ae) {
				verr.add("selectedAxes."+ae.Axis, axisMessage(ae.Err))
			}
		}
		if z := in.SelectedAxes.Z; in.ChartType == model.Chart2D && z != "" && !in.Data.HasColumn(z) {
			verr.add("selectedAxes.z", axisMessage(chart.ErrUnknownColumn))
		}
	}
	return verr.orNil()
}

const nulMessage = "must not contain NUL characters"

// hasNUL reports whether a column name or text cell holds U+0000, which
// PostgreSQL text and jsonb reject.
func hasNUL(ds model.Dataset) bool {
	for _, c := range ds.Columns {
		if strings.ContainsRune(c, 0) {
			return true
		}
	}
	for _, row := range ds.Rows {
		for k, v := range row {
			if strings.ContainsRune(k, 0) {
				return true
			}
			if str, ok := v.(string); ok && strings.ContainsRune(str, 0) {
				return true
			}
		}
	}
	return false
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

func axisMessage(err error) string {
	switch {
	case errors.Is(err, chart.ErrAxisRequired):
		return "is required"
	case errors.Is(err, chart.ErrUnknownColumn):
		return "must name a column of data"
	}
	return "is invalid"
}

// summarize describes a dataset's shape, e.g. "3 rows, 2 columns: Region, Sales".
func summarize(ds model.Dataset) string {
	const maxListed = 8
	cols := ds.Columns
	listed := strings.Join(cols, ", ")
	if len(cols) > maxListed {
		listed = strings.Join(cols[:maxListed], ", ") + fmt.Sprintf(" and %d more", len(cols)-maxListed)
	}
	return fmt.Sprintf("%s, %s: %s", plural(ds.Len(), "row"), plural(len(cols), "column"), listed)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
