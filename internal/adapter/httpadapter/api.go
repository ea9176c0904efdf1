package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/forecast"
)

// Forecast hours step by three, matching the dataset's usable output interval.
const hourStep = 3

type api struct {
	service ForecastService
	history History
	maxHour int
	logger  *slog.Logger
}

type runResponse struct {
	Run       string    `json:"run"`
	Date      string    `json:"date"`
	CycleHour int       `json:"cycle_hour"`
	InitTime  time.Time `json:"init_time"`
	Address   string    `json:"address"`
}

type fieldsResponse struct {
	Fields   []domain.Field `json:"fields"`
	MaxHour  int           `json:"max_hour"`
	HourStep int           `json:"hour_step"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) handleRun(w http.ResponseWriter, _ *http.Request) {
	info := a.service.CurrentRun()
	writeJSON(w, http.StatusOK, runResponse{
		Run:       info.ID,
		Date:      info.Run.DateString(),
		CycleHour: info.Run.CycleHour,
		InitTime:  info.Run.InitTime(),
		Address:   info.Address,
	})
}

func (a *api) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Regions())
}

func (a *api) handleFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, fieldsResponse{
		Fields:   domain.Fields(),
		MaxHour:  a.maxHour,
		HourStep: hourStep,
	})
}

func (a *api) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := parseForecastRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := a.service.Snapshot(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, forecast.ErrFetch):
		writeError(w, http.StatusBadGateway, err)
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		a.logger.Error("snapshot failed", "region", req.Region, "field", req.Field, "hour", req.Hour, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusNotFound, errors.New("snapshot archive is disabled"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	recs, err := a.history.Recent(r.Context(), r.URL.Query().Get("region"), limit)
	if err != nil {
		a.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func parseForecastRequest(r *http.Request) (forecast.Request, error) {
	q := r.URL.Query()
	req := forecast.Request{
		Region: q.Get("region"),
		Field:  q.Get("field"),
	}
	if req.Region == "" {
		return req, errors.New("region is required")
	}
	if req.Field == "" {
		return req, errors.New("field is required")
	}

	if raw := q.Get("hour"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %q", domain.ErrInvalidForecastHour, raw)
		}
		req.Hour = h
	}

	if raw := q.Get("run"); raw != "" {
		run, err := domain.ParseModelRun(raw)
		if err != nil {
			return req, err
		}
		req.Run = &run
	}
	return req, nil
}

func isBadRequest(err error) bool {
	for _, target := range []error{
		domain.ErrUnknownRegion,
		domain.ErrUnknownField,
		domain.ErrInvalidForecastHour,
		domain.ErrInvalidRun,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
