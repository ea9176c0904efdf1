package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	validTimeLayout = "15UTC Mon 02 Jan 2006"
	// vectorStride thins wind arrows to every other grid point on both axes.
	vectorStride = 2
)

// WindVector is one arrow of the wind overlay, in m/s.
type WindVector struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	U   float64 `json:"u"`
	V   float64 `json:"v"`
}

// Labels carries the strings a renderer prints around the map.
type Labels struct {
	Title string `json:"title"`
	Valid string `json:"valid"`
	Lead  string `json:"lead"`
	Run   string `json:"run"`
}

// Snapshot is one field, for one run and forecast hour, cropped to a region
// and converted to display units.
type Snapshot struct {
	Run          ModelRun     `json:"run"`
	Address      string       `json:"address"`
	Region       Region       `json:"region"`
	Field        Field        `json:"field"`
	ForecastHour int          `json:"forecast_hour"`
	ValidTime    time.Time    `json:"valid_time"`
	Labels       Labels       `json:"labels"`
	Lats         []float64    `json:"lats"`
	Lons         []float64    `json:"lons"`
	Values       Values       `json:"values"`
	Stats        Stats        `json:"stats"`
	MarkerValue  *float64     `json:"marker_value,omitempty"`
	Vectors      []WindVector `json:"vectors,omitempty"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

// Values is a [lat][lon] matrix that encodes missing points as JSON null.
type Values [][]float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	out := make([][]*float64, len(v))
	for i, row := range v {
		r := make([]*float64, len(row))
		for j := range row {
			if x := row[j]; !math.IsNaN(x) && !math.IsInf(x, 0) {
				r[j] = &x
			}
		}
		out[i] = r
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler; nulls decode to NaN.
func (v *Values) UnmarshalJSON(data []byte) error {
	var in [][]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Values, len(in))
	for i, row := range in {
		r := make([]float64, len(row))
		for j, x := range row {
			if x == nil {
				r[j] = math.NaN()
				continue
			}
			r[j] = *x
		}
		out[i] = r
	}
	*v = out
	return nil
}

// ValidateForecastHour checks 0 <= hour <= maxHour.
func ValidateForecastHour(hour, maxHour int) error {
	if hour < 0 || hour > maxHour {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidForecastHour, hour, maxHour)
	}
	return nil
}

// ValidTime is the instant a forecast hour of run is valid for.
func ValidTime(run ModelRun, hour int) time.Time {
	return run.InitTime().Add(time.Duration(hour) * time.Hour)
}

// LeadLabel renders a forecast hour as "t+006".
func LeadLabel(hour int) string {
	return fmt.Sprintf("t+%03d", hour)
}

// BuildSnapshot converts raw GFS grids, one per field variable in order,
// crops them to the region and assembles the snapshot.
func BuildSnapshot(run ModelRun, region Region, field Field, hour int, raw []Grid) (Snapshot, error) {
	if len(raw) != len(field.Variables) {
		return Snapshot{}, fmt.Errorf("%w: field %s needs %d grids, got %d",
			ErrGridShape, field.Key, len(field.Variables), len(raw))
	}
	cropped := make([]Grid, len(raw))
	for i, g := range raw {
		if err := g.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", field.Variables[i], err)
		}
		cropped[i] = g.Crop(region.Box)
	}

	grid, err := CombineGrids(field.Convert, cropped...)
	if err != nil {
		return Snapshot{}, err
	}

	valid := ValidTime(run, hour)
	snap := Snapshot{
		Run:          run,
		Address:      FormatRetrievalAddress(run),
		Region:       region,
		Field:        field,
		ForecastHour: hour,
		ValidTime:    valid,
		Labels: Labels{
			Title: fmt.Sprintf("%s (%s)", field.Label, field.Unit),
			Valid: "Valid: " + valid.Format(validTimeLayout),
			Lead:  LeadLabel(hour),
			Run:   fmt.Sprintf("GFS %s %sZ %s", run.DateString(), run.HourString(), LeadLabel(hour)),
		},
		Lats:        grid.Lats,
		Lons:        grid.Lons,
		Values:      Values(grid.Values),
		Stats:       grid.Stats(),
		ProcessedAt: clock.Now().UTC(),
	}

	if m := region.Marker; m != nil && region.Box.Contains(m.Lat, m.Lon) {
		if v, ok := grid.Nearest(m.Lat, m.Lon); ok {
			snap.MarkerValue = &v
		}
	}
	if field.IsVector() {
		snap.Vectors = windVectors(cropped[0], cropped[1])
	}
	return snap, nil
}

func windVectors(u, v Grid) []WindVector {
	var out []WindVector
	for i := 0; i < len(u.Lats); i += vectorStride {
		for j := 0; j < len(u.Lons); j += vectorStride {
			uu, vv := u.Values[i][j], v.Values[i][j]
			if math.IsNaN(uu) || math.IsNaN(vv) {
				continue
			}
			out = append(out, WindVector{Lat: u.Lats[i], Lon: u.Lons[j], U: uu, V: vv})
		}
	}
	return out
}

// Key identifies a snapshot for publishing and archiving.
func (s Snapshot) Key() string {
	return fmt.Sprintf("%s|%s|%s|%03d", s.Run, s.Region.Key, s.Field.Key, s.ForecastHour)
}
