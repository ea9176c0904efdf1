package domain

import (
	"fmt"
	"math"
)

// Grid is a two-dimensional field on a regular latitude/longitude mesh.
// Values are indexed [lat][lon]; missing points are NaN.
type Grid struct {
	Lats   []float64
	Lons   []float64
	Values [][]float64
}

// Validate checks that Values matches the coordinate axes.
func (g Grid) Validate() error {
	if len(g.Values) != len(g.Lats) {
		return fmt.Errorf("%w: %d rows for %d latitudes", ErrGridShape, len(g.Values), len(g.Lats))
	}
	for i, row := range g.Values {
		if len(row) != len(g.Lons) {
			return fmt.Errorf("%w: row %d has %d values for %d longitudes", ErrGridShape, i, len(row), len(g.Lons))
		}
	}
	return nil
}

// Empty reports whether the grid has no points.
func (g Grid) Empty() bool {
	return len(g.Lats) == 0 || len(g.Lons) == 0
}

// Crop keeps the points inside box, preserving axis order. Descending
// latitude axes are handled the same as ascending ones.
func (g Grid) Crop(box BoundingBox) Grid {
	box = box.Normalized()
	latIdx := indicesWithin(g.Lats, box.LatMin, box.LatMax)
	lonIdx := indicesWithin(g.Lons, box.LonMin, box.LonMax)

	out := Grid{
		Lats:   make([]float64, len(latIdx)),
		Lons:   make([]float64, len(lonIdx)),
		Values: make([][]float64, len(latIdx)),
	}
	for j, lj := range lonIdx {
		out.Lons[j] = g.Lons[lj]
	}
	for i, li := range latIdx {
		out.Lats[i] = g.Lats[li]
		row := make([]float64, len(lonIdx))
		for j, lj := range lonIdx {
			row[j] = g.Values[li][lj]
		}
		out.Values[i] = row
	}
	return out
}

// coordEpsilon absorbs float noise in coordinates such as 2.0000001.
const coordEpsilon = 1e-6

func indicesWithin(axis []float64, lo, hi float64) []int {
	idx := make([]int, 0, len(axis))
	for i, v := range axis {
		if v >= lo-coordEpsilon && v <= hi+coordEpsilon {
			idx = append(idx, i)
		}
	}
	return idx
}

// Map returns a new grid with fn applied to every value.
func (g Grid) Map(fn func(float64) float64) Grid {
	out := Grid{Lats: g.Lats, Lons: g.Lons, Values: make([][]float64, len(g.Values))}
	for i, row := range g.Values {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = fn(v)
		}
		out.Values[i] = r
	}
	return out
}

// CombineGrids applies fn point-wise across grids that share one mesh.
func CombineGrids(fn func(v ...float64) float64, grids ...Grid) (Grid, error) {
	if len(grids) == 0 {
		return Grid{}, fmt.Errorf("%w: no grids to combine", ErrGridShape)
	}
	base := grids[0]
	for _, g := range grids[1:] {
		if len(g.Lats) != len(base.Lats) || len(g.Lons) != len(base.Lons) {
			return Grid{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrGridShape,
				len(base.Lats), len(base.Lons), len(g.Lats), len(g.Lons))
		}
	}

	out := Grid{Lats: base.Lats, Lons: base.Lons, Values: make([][]float64, len(base.Values))}
	args := make([]float64, len(grids))
	for i := range base.Values {
		row := make([]float64, len(base.Lons))
		for j := range row {
			for k, g := range grids {
				args[k] = g.Values[i][j]
			}
			row[j] = fn(args...)
		}
		out.Values[i] = row
	}
	return out, nil
}

// Stats summarises the finite values of a grid.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Stats returns min, max and mean over finite values. Count is zero when
// every point is missing.
func (g Grid) Stats() Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, row := range g.Values {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
			sum += v
			s.Count++
		}
	}
	if s.Count == 0 {
		return Stats{}
	}
	s.Mean = sum / float64(s.Count)
	return s
}

// Nearest returns the value at the grid point closest to (lat, lon) and
// false when the grid is empty or that value is missing.
func (g Grid) Nearest(lat, lon float64) (float64, bool) {
	if g.Empty() {
		return 0, false
	}
	if lon < 0 {
		lon += 360
	}
	i := nearestIndex(g.Lats, lat)
	j := nearestIndex(g.Lons, lon)
	v := g.Values[i][j]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func nearestIndex(axis []float64, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, v := range axis {
		if d := math.Abs(v - x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
