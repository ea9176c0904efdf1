package domain

import (
	"fmt"
	"math"
	"strings"
)

// Display hints how a renderer should draw a field.
type Display string

const (
	DisplayShaded  Display = "shaded"
	DisplayContour Display = "contour"
	DisplayVectors Display = "shaded+vectors"
)

const (
	secondsPerHour = 3600
	kelvinOffset   = 273.15
	msToKnots      = 1.94384
	paPerHPa       = 100
)

// Field describes one selectable meteorological parameter and how its GFS
// variables combine into display units.
type Field struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Unit      string   `json:"unit"`
	Variables []string `json:"variables"`
	Display   Display  `json:"display"`

	// convert maps one value per entry of Variables to the display value.
	convert func(v ...float64) float64
}

// Convert applies the field's unit conversion to raw GFS values, one per
// variable. NaN inputs produce NaN.
func (f Field) Convert(v ...float64) float64 {
	return f.convert(v...)
}

// IsVector reports whether the field is derived from u/v wind components.
func (f Field) IsVector() bool {
	return f.Display == DisplayVectors
}

var fields = []Field{
	{
		Key:       "pratesfc",
		Label:     "Precipitation rate",
		Unit:      "mm/h",
		Variables: []string{"pratesfc"},
		Display:   DisplayShaded,
		convert:   func(v ...float64) float64 { return v[0] * secondsPerHour },
	},
	{
		Key:       "tmp2m",
		Label:     "2 m temperature",
		Unit:      "°C",
		Variables: []string{"tmp2m"},
		Display:   DisplayShaded,
		convert:   func(v ...float64) float64 { return v[0] - kelvinOffset },
	},
	{
		Key:       "wind10m",
		Label:     "10 m wind speed",
		Unit:      "knot",
		Variables: []string{"ugrd10m", "vgrd10m"},
		Display:   DisplayVectors,
		convert:   func(v ...float64) float64 { return math.Hypot(v[0], v[1]) * msToKnots },
	},
	{
		Key:       "prmslmsl",
		Label:     "Mean sea level pressure",
		Unit:      "hPa",
		Variables: []string{"prmslmsl"},
		Display:   DisplayContour,
		convert:   func(v ...float64) float64 { return v[0] / paPerHPa },
	},
}

// Fields returns the supported fields in dashboard order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// LookupField finds a field by key or by one of its GFS variable names,
// case-insensitively.
func LookupField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range fields {
		if f.Key == name {
			return f, nil
		}
		for _, v := range f.Variables {
			if v == name {
				return f, nil
			}
		}
	}
	return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
}
