package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NOMADSBaseURL is the host and path prefix of the NOMADS GrADS-DODS server.
const NOMADSBaseURL = "https://nomads.ncep.noaa.gov/dods"

// DefaultPublicationLatency is how long after initialization a GFS cycle is
// assumed to be fully published on NOMADS.
const DefaultPublicationLatency = 6 * time.Hour

const (
	runDateLayout = "20060102"
	cycleStep     = 6
)

// CycleHours are the four synoptic initialization hours of the GFS.
var CycleHours = [4]int{0, 6, 12, 18}

// ModelRun identifies one published GFS forecast cycle.
type ModelRun struct {
	// Date is the UTC calendar date the cycle was initialized, at midnight UTC.
	Date time.Time `json:"date"`
	// CycleHour is one of CycleHours.
	CycleHour int `json:"cycle_hour"`
}

// ResolveLatestRun returns the most recent cycle that should already be
// published at now, given the provider's publication latency. The date is
// always taken from the offset instant, so subtracting latency across
// midnight yields the previous day's 18Z cycle.
func ResolveLatestRun(now time.Time, latency time.Duration) ModelRun {
	effective := now.UTC().Add(-latency)
	y, m, d := effective.Date()
	return ModelRun{
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		CycleHour: CycleHours[effective.Hour()/cycleStep],
	}
}

// FormatRetrievalAddress returns the OPeNDAP address of the 0.25°, hourly
// GFS dataset for run.
func FormatRetrievalAddress(run ModelRun) string {
	return RetrievalAddress(NOMADSBaseURL, run)
}

// RetrievalAddress renders the dataset address for run under an alternate
// base URL (mirrors, test servers).
func RetrievalAddress(base string, run ModelRun) string {
	return fmt.Sprintf("%s/gfs_0p25_1hr/gfs%s/gfs_0p25_1hr_%sz",
		strings.TrimRight(base, "/"), run.DateString(), run.HourString())
}

// DateString formats the run date as YYYYMMDD.
func (r ModelRun) DateString() string {
	return r.Date.UTC().Format(runDateLayout)
}

// HourString formats the cycle hour as two zero-padded digits.
func (r ModelRun) HourString() string {
	return fmt.Sprintf("%02d", r.CycleHour)
}

// InitTime is the UTC instant the cycle was initialized.
func (r ModelRun) InitTime() time.Time {
	y, m, d := r.Date.UTC().Date()
	return time.Date(y, m, d, r.CycleHour, 0, 0, 0, time.UTC)
}

// Compare orders runs by (date, cycle hour). It returns -1, 0 or +1.
func (r ModelRun) Compare(other ModelRun) int {
	return r.InitTime().Compare(other.InitTime())
}

// String renders the run as "20240102/06Z".
func (r ModelRun) String() string {
	return r.DateString() + "/" + r.HourString() + "Z"
}

// ParseModelRun parses the String form of a run. The trailing "Z" is optional.
func ParseModelRun(s string) (ModelRun, error) {
	datePart, hourPart, ok := strings.Cut(strings.TrimSuffix(strings.TrimSpace(s), "Z"), "/")
	if !ok {
		return ModelRun{}, fmt.Errorf("%w: %q: want YYYYMMDD/HH", ErrInvalidRun, s)
	}
	date, err := time.Parse(runDateLayout, datePart)
	if err != nil {
		return ModelRun{}, fmt.Errorf("%w: %q: %v", ErrInvalidRun, s, err)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil || len(hourPart) != 2 {
		return ModelRun{}, fmt.Errorf("%w: %q: bad cycle hour", ErrInvalidRun, s)
	}
	if !isCycleHour(hour) {
		return ModelRun{}, fmt.Errorf("%w: %q: cycle hour must be 00, 06, 12 or 18", ErrInvalidRun, s)
	}
	return ModelRun{Date: date.UTC(), CycleHour: hour}, nil
}

func isCycleHour(h int) bool {
	for _, c := range CycleHours {
		if c == h {
			return true
		}
	}
	return false
}
