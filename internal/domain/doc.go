// Package domain models GFS model runs, regional crop windows and the
// meteorological fields served by the dashboard.
//
// # Data Source
//
// NCEP publishes the Global Forecast System four times a day. The 0.25°,
// hourly output is exposed as an OPeNDAP dataset on the NOMADS GrADS-DODS
// server:
//
//	https://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr/gfs20240102/gfs_0p25_1hr_06z
//
// The date segment is the UTC initialization date (YYYYMMDD) and the final
// segment carries the two-digit cycle hour. See [FormatRetrievalAddress].
//
// # Run Selection
//
// A cycle is not complete on NOMADS until several hours after its nominal
// initialization time. [ResolveLatestRun] subtracts a fixed publication
// latency from "now" and picks the cycle whose six-hour window contains the
// offset instant:
//
//	[00,06) → 00Z   [06,12) → 06Z   [12,18) → 12Z   [18,24) → 18Z
//
// The date is taken from the offset instant, so at 05:00Z with a 6h latency
// the previous day's 18Z cycle is selected.
//
// # Grid Conventions
//
//	Latitude:  -90 to 90 in 0.25° steps (721 points), ascending.
//	Longitude: 0 to 359.75 in 0.25° steps (1440 points); western
//	           longitudes are shifted by +360 before indexing.
//	Time:      one step per forecast hour starting at the run's init time.
//
// Missing values arrive as the GrADS fill value 9.999e20 and are carried as
// NaN, then serialised as JSON null.
//
// # Units
//
//	pratesfc  kg m⁻² s⁻¹ × 3600     → mm/h
//	tmp2m     K − 273.15            → °C
//	ugrd10m/vgrd10m  √(u²+v²) × 1.94384 → knot
//	prmslmsl  Pa ÷ 100              → hPa
package domain
