package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BoundingBox is a closed latitude/longitude window in degrees.
type BoundingBox struct {
	LatMin float64 `json:"lat_min" toml:"lat_min"`
	LatMax float64 `json:"lat_max" toml:"lat_max"`
	LonMin float64 `json:"lon_min" toml:"lon_min"`
	LonMax float64 `json:"lon_max" toml:"lon_max"`
}

// Validate checks ordering and range. Boxes crossing the antimeridian or
// the GFS longitude seam are not supported.
func (b BoundingBox) Validate() error {
	switch {
	case b.LatMin > b.LatMax:
		return fmt.Errorf("%w: lat_min %.2f > lat_max %.2f", ErrInvalidBox, b.LatMin, b.LatMax)
	case b.LonMin > b.LonMax:
		return fmt.Errorf("%w: lon_min %.2f > lon_max %.2f", ErrInvalidBox, b.LonMin, b.LonMax)
	case b.LatMin < -90 || b.LatMax > 90:
		return fmt.Errorf("%w: latitude outside [-90, 90]", ErrInvalidBox)
	case b.LonMin < -180 || b.LonMax > 360:
		return fmt.Errorf("%w: longitude outside [-180, 360]", ErrInvalidBox)
	case b.LonMin < 0 && b.LonMax >= 0:
		return fmt.Errorf("%w: box crosses the prime meridian", ErrInvalidBox)
	}
	return nil
}

// Normalized shifts a box given in [-180, 0) longitudes onto the GFS
// [0, 360) longitude axis.
func (b BoundingBox) Normalized() BoundingBox {
	if b.LonMin < 0 {
		b.LonMin += 360
		b.LonMax += 360
	}
	return b
}

// Contains reports whether the point lies inside the closed box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// Marker is a labelled point of interest drawn on the regional map.
type Marker struct {
	Lat   float64 `json:"lat" toml:"lat"`
	Lon   float64 `json:"lon" toml:"lon"`
	Label string  `json:"label" toml:"label"`
}

// Region is one dashboard configuration: a title, a crop window and an
// optional station marker.
type Region struct {
	Key    string      `json:"key" toml:"key"`
	Title  string      `json:"title" toml:"title"`
	Box    BoundingBox `json:"box" toml:"box"`
	Marker *Marker     `json:"marker,omitempty" toml:"marker"`
}

// Validate checks the key and bounding box.
func (r Region) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return errors.New("region key is required")
	}
	if err := r.Box.Validate(); err != nil {
		return fmt.Errorf("region %q: %w", r.Key, err)
	}
	return nil
}

// DefaultRegions are built in and can be extended or overridden from the
// regions file.
func DefaultRegions() []Region {
	return []Region{
		{
			Key:   "kalimantan-utara",
			Title: "Kalimantan Utara",
			Box:   BoundingBox{LatMin: 2.0, LatMax: 5.0, LonMin: 114.0, LonMax: 118.0},
			Marker: &Marker{
				Lat:   3.6888,
				Lon:   115.7372,
				Label: "BMKG Yuvai Semaring (Long Bawan)",
			},
		},
		{
			Key:   "indonesia",
			Title: "Indonesia",
			Box:   BoundingBox{LatMin: -11.0, LatMax: 6.0, LonMin: 94.0, LonMax: 141.0},
		},
	}
}

// RegionSet is an immutable lookup of regions by key.
type RegionSet struct {
	byKey map[string]Region
}

// NewRegionSet validates regions and indexes them by key. Later entries
// replace earlier ones with the same key.
func NewRegionSet(regions ...Region) (*RegionSet, error) {
	set := &RegionSet{byKey: make(map[string]Region, len(regions))}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		set.byKey[r.Key] = r
	}
	return set, nil
}

// Lookup returns the region for key.
func (s *RegionSet) Lookup(key string) (Region, error) {
	r, ok := s.byKey[strings.TrimSpace(key)]
	if !ok {
		return Region{}, fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}
	return r, nil
}

// All returns every region sorted by key.
func (s *RegionSet) All() []Region {
	out := make([]Region, 0, len(s.byKey))
	for _, r := range s.byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
