// Command gfsrun prints the most recent GFS 0.25° hourly run expected to be
// published at a given instant, and the NOMADS OPeNDAP address to read it from.
//
// Usage:
//
//	go run ./cmd/gfsrun
//	go run ./cmd/gfsrun -at 2024-01-02T05:00:00Z -latency 6h -json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

type output struct {
	Run       string    `json:"run"`
	Date      string    `json:"date"`
	CycleHour int       `json:"cycle_hour"`
	InitTime  time.Time `json:"init_time"`
	Address   string    `json:"address"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gfsrun", flag.ContinueOnError)
	at := fs.String("at", "", "reference instant in RFC 3339 (default: now)")
	latency := fs.Duration("latency", domain.DefaultPublicationLatency, "publication latency subtracted before choosing the cycle")
	asJSON := fs.Bool("json", false, "print JSON instead of plain text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *latency < 0 {
		return fmt.Errorf("invalid -latency %s: must not be negative", *latency)
	}

	r := domain.LatestRun(*latency)
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at %q: %w", *at, err)
		}
		r = domain.ResolveLatestRun(t, *latency)
	}
	out := output{
		Run:       r.String(),
		Date:      r.DateString(),
		CycleHour: r.CycleHour,
		InitTime:  r.InitTime(),
		Address:   domain.FormatRetrievalAddress(r),
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintf(stdout, "run:     %s\naddress: %s\n", out.Run, out.Address)
	return err
}
