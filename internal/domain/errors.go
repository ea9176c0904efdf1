package domain

import "errors"

var (
	ErrUnknownField        = errors.New("unknown field")
	ErrUnknownRegion       = errors.New("unknown region")
	ErrInvalidForecastHour = errors.New("invalid forecast hour")
	ErrInvalidRun          = errors.New("invalid model run")
	ErrInvalidBox          = errors.New("invalid bounding box")
	ErrGridShape           = errors.New("grid shape mismatch")
)
