package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// GFS source configuration.
	GFSBaseURL         string
	PublicationLatency time.Duration
	FetchTimeout       time.Duration
	CacheSize          int
	MaxForecastHour    int

	// Dashboard regions.
	RegionsFile   string
	Regions       []domain.Region
	DefaultRegion string

	// Background cache refresh.
	RefreshEnabled  bool
	RefreshInterval time.Duration
	RefreshHours    []int

	// Snapshot sinks.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	ArchiveDBPath  string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	latency, err := parsePositiveDuration("GFS_PUBLICATION_LATENCY", "6h")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("GFS_FETCH_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "30m")
	if err != nil {
		return nil, err
	}

	maxHour, err := parseInt("FORECAST_MAX_HOUR", 240)
	if err != nil {
		return nil, err
	}
	if maxHour < 0 {
		return nil, errors.New("invalid FORECAST_MAX_HOUR: must be >= 0")
	}

	refreshHours, err := parseHours(sharedcfg.EnvOrDefault("REFRESH_HOURS", "0,6,12,24"), maxHour)
	if err != nil {
		return nil, err
	}

	regionsFile := os.Getenv("REGIONS_FILE")
	regions := domain.DefaultRegions()
	if regionsFile != "" {
		extra, err := LoadRegions(regionsFile)
		if err != nil {
			return nil, err
		}
		regions = append(regions, extra...)
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	refreshEnabled := true
	if v := os.Getenv("REFRESH_ENABLED"); v != "" {
		refreshEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GFSBaseURL:         sharedcfg.EnvOrDefault("GFS_BASE_URL", domain.NOMADSBaseURL),
		PublicationLatency: latency,
		FetchTimeout:       fetchTimeout,
		CacheSize:          parseCacheSize(),
		MaxForecastHour:    maxHour,

		RegionsFile:   regionsFile,
		Regions:       regions,
		DefaultRegion: sharedcfg.EnvOrDefault("DEFAULT_REGION", "kalimantan-utara"),

		RefreshEnabled:  refreshEnabled,
		RefreshInterval: refreshInterval,
		RefreshHours:    refreshHours,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "gfs-field-snapshots"),
		ArchiveDBPath:  os.Getenv("ARCHIVE_DB_PATH"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if !hasRegion(cfg.Regions, cfg.DefaultRegion) {
		return nil, fmt.Errorf("DEFAULT_REGION %q is not a known region", cfg.DefaultRegion)
	}

	return cfg, nil
}

// regionsDoc is the TOML layout of REGIONS_FILE:
//
//	[[region]]
//	key = "nunukan"
//	title = "Kabupaten Nunukan"
//	box = { lat_min = 3.0, lat_max = 4.6, lon_min = 115.4, lon_max = 118.0 }
//	marker = { lat = 4.13, lon = 117.67, label = "Nunukan" }
type regionsDoc struct {
	Regions []domain.Region `toml:"region"`
}

// LoadRegions reads and validates region definitions from a TOML file.
func LoadRegions(path string) ([]domain.Region, error) {
	var f regionsDoc
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("load REGIONS_FILE %s: %w", path, err)
	}
	for _, r := range f.Regions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("REGIONS_FILE %s: %w", path, err)
		}
	}
	return f.Regions, nil
}

func hasRegion(regions []domain.Region, key string) bool {
	for _, r := range regions {
		if r.Key == key {
			return true
		}
	}
	return false
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseHours(s string, maxHour int) ([]int, error) {
	var hours []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h < 0 || h > maxHour {
			return nil, fmt.Errorf("invalid REFRESH_HOURS entry %q", part)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GFS_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
