package nomads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

// GFS 0.25° grid geometry on the GrADS-DODS server.
const (
	resolution = 0.25
	latOrigin  = -90.0
	lonOrigin  = 0.0
	nLat       = 721
	nLon       = 1440
)

// Client implements forecast.Fetcher against the NOMADS OPeNDAP server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NOMADS client. baseURL is normally domain.NOMADSBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchGrid downloads one variable at one forecast hour, subset on the server
// to the smallest index window covering box.
func (c *Client) FetchGrid(ctx context.Context, run domain.ModelRun, variable string, hour int, box domain.BoundingBox) (domain.Grid, error) {
	q, err := subsetQuery(variable, hour, box)
	if err != nil {
		return domain.Grid{}, err
	}
	u := domain.RetrievalAddress(c.baseURL, run) + ".ascii?" + q

	start := time.Now()
	g, err := c.doRequest(ctx, u, variable)
	c.metrics.FetchDuration.WithLabelValues(variable).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(variable, "error").Inc()
		return domain.Grid{}, err
	}
	c.metrics.FetchRequests.WithLabelValues(variable, "success").Inc()
	c.logger.Debug("gfs grid fetched",
		"run", run.String(), "variable", variable, "hour", hour,
		"lats", len(g.Lats), "lons", len(g.Lons), "duration", time.Since(start))
	return g, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, variable string) (domain.Grid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("%s request: %w", variable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Grid{}, fmt.Errorf("nomads error: status %d: %s", resp.StatusCode, body)
	}

	parsed, err := parseASCII(resp.Body)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("decode %s: %w", variable, err)
	}
	if parsed.variable != variable {
		return domain.Grid{}, fmt.Errorf("decode %s: response carries %q", variable, parsed.variable)
	}
	return parsed.grid()
}

// subsetQuery builds the OPeNDAP constraint "var[t][lat0:lat1][lon0:lon1]"
// selecting every grid point inside box.
func subsetQuery(variable string, hour int, box domain.BoundingBox) (string, error) {
	if err := box.Validate(); err != nil {
		return "", err
	}
	box = box.Normalized()

	latLo, latHi := indexRange(box.LatMin, box.LatMax, latOrigin, nLat)
	lonLo, lonHi := indexRange(box.LonMin, box.LonMax, lonOrigin, nLon)
	if latLo > latHi || lonLo > lonHi {
		return "", fmt.Errorf("%w: box falls between grid points", domain.ErrInvalidBox)
	}
	return fmt.Sprintf("%s[%d][%d:%d][%d:%d]", variable, hour, latLo, latHi, lonLo, lonHi), nil
}

// indexRange maps [lo, hi] onto the inclusive index window of grid points
// lying inside it, clamped to [0, n-1].
func indexRange(lo, hi, origin float64, n int) (int, int) {
	const eps = 1e-9
	first := int(math.Ceil((lo-origin)/resolution - eps))
	last := int(math.Floor((hi-origin)/resolution + eps))
	return max(first, 0), min(last, n-1)
}
