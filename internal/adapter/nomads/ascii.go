package nomads

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

// fillThreshold catches the GrADS missing-value sentinel 9.999e20.
const fillThreshold = 9.99e20

var (
	// headerRe matches a variable header such as "tmp2m, [1][13][17]".
	headerRe = regexp.MustCompile(`^(\w+),\s*((?:\[\d+\])+)\s*$`)
	// rowRe matches a data row prefix such as "[0][12], ".
	rowRe = regexp.MustCompile(`^((?:\[\d+\])+),\s*(.*)$`)
	dimRe = regexp.MustCompile(`\[(\d+)\]`)
)

// asciiResponse is a decoded GrADS-DODS ".ascii" body: one data variable
// plus its coordinate vectors.
type asciiResponse struct {
	variable string
	dims     []int
	data     []float64
	coords   map[string][]float64
}

// parseASCII decodes a GrADS-DODS ASCII response of the form
//
//	tmp2m, [1][2][3]
//	[0][0], 300.1, 300.2, 300.3
//	[0][1], 300.4, 300.5, 300.6
//
//	time, [1]
//	738887.25
//	lat, [2]
//	2.0, 2.25
//	lon, [3]
//	114.0, 114.25, 114.5
func parseASCII(r io.Reader) (*asciiResponse, error) {
	resp := &asciiResponse{coords: make(map[string][]float64)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var coord string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			dims := parseDims(m[2])
			if resp.variable == "" {
				resp.variable = m[1]
				resp.dims = dims
				coord = ""
				continue
			}
			coord = m[1]
			continue
		}

		if m := rowRe.FindStringSubmatch(line); m != nil {
			if resp.variable == "" || coord != "" {
				return nil, fmt.Errorf("unexpected data row %q", line)
			}
			vals, err := parseValues(m[2])
			if err != nil {
				return nil, err
			}
			resp.data = append(resp.data, vals...)
			continue
		}

		if coord == "" {
			// GrADS prefixes errors with free text before any header.
			if resp.variable == "" {
				return nil, fmt.Errorf("unexpected response: %s", line)
			}
			return nil, fmt.Errorf("unexpected line %q", line)
		}
		vals, err := parseValues(line)
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", coord, err)
		}
		resp.coords[coord] = append(resp.coords[coord], vals...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.variable == "" {
		return nil, fmt.Errorf("empty response")
	}
	return resp, nil
}

func parseDims(s string) []int {
	var dims []int
	for _, m := range dimRe.FindAllStringSubmatch(s, -1) {
		n, _ := strconv.Atoi(m[1])
		dims = append(dims, n)
	}
	return dims
}

func parseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q: %w", p, err)
		}
		if math.Abs(v) >= fillThreshold {
			v = math.NaN()
		}
		out = append(out, v)
	}
	return out, nil
}

// grid reshapes the response into a lat/lon grid. The variable must be
// [time][lat][lon] with a single time step.
func (r *asciiResponse) grid() (domain.Grid, error) {
	if len(r.dims) != 3 || r.dims[0] != 1 {
		return domain.Grid{}, fmt.Errorf("%s: want dims [1][lat][lon], got %v", r.variable, r.dims)
	}
	nLat, nLon := r.dims[1], r.dims[2]
	lats, lons := r.coords["lat"], r.coords["lon"]
	if len(lats) != nLat || len(lons) != nLon {
		return domain.Grid{}, fmt.Errorf("%s: coordinate lengths lat=%d lon=%d do not match dims %v",
			r.variable, len(lats), len(lons), r.dims)
	}
	if len(r.data) != nLat*nLon {
		return domain.Grid{}, fmt.Errorf("%s: got %d values, want %d", r.variable, len(r.data), nLat*nLon)
	}

	g := domain.Grid{Lats: lats, Lons: lons, Values: make([][]float64, nLat)}
	for i := 0; i < nLat; i++ {
		g.Values[i] = r.data[i*nLon : (i+1)*nLon]
	}
	return g, nil
}
