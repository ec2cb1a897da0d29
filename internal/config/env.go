// Package config loads trajevent settings from TRAJEVENT_* environment
// variables and YAML run files.
//
// Invalid environment values are logged and replaced by their defaults;
// a malformed run file is an error.
package config

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/star/trajevent/internal/auth"
	"github.com/star/trajevent/internal/stream"
)

// TLEConfig controls where the serve command gets element sets.
type TLEConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
}

// SearchConfig holds stop-search defaults.
type SearchConfig struct {
	Workers int
	Step    time.Duration
	Span    time.Duration
}

// Env is the process-level configuration.
type Env struct {
	HTTPAddr string
	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	TrustProxy bool
	Auth       auth.Config
	Stream     stream.Config
	Search     SearchConfig
	TLE        TLEConfig
	// Station is nil unless TRAJEVENT_STATION_LAT and _LON are both set.
	Station *Station
	// SecondsPerUnit scales report durations (86400 for MJD epochs).
	SecondsPerUnit float64
}

// LoadEnv reads every TRAJEVENT_* variable. Only an unusable auth setup is
// an error; everything else falls back to its default.
func LoadEnv(logger *slog.Logger) (Env, error) {
	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return Env{}, err
	}

	env := Env{
		HTTPAddr:       ":8080",
		Auth:           authCfg,
		Stream:         loadStreamConfig(logger),
		Search:         loadSearchConfig(logger),
		TLE:            loadTLEConfig(logger),
		Station:        loadStation(logger),
		SecondsPerUnit: 86400,
	}
	if v := os.Getenv("TRAJEVENT_HTTP_ADDR"); v != "" {
		env.HTTPAddr = v
	}
	if v := os.Getenv("TRAJEVENT_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TRAJEVENT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			env.TrustProxy = trust
		}
	}
	if v := os.Getenv("TRAJEVENT_SECONDS_PER_UNIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid TRAJEVENT_SECONDS_PER_UNIT value, using default", "value", v, "default", env.SecondsPerUnit)
		} else {
			env.SecondsPerUnit = f
		}
	}
	return env, nil
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("TRAJEVENT_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("TRAJEVENT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("TRAJEVENT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("TRAJEVENT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: positiveInt(logger, "TRAJEVENT_STREAM_MAX_CONCURRENT", 4),
		MaxTotal:           positiveInt(logger, "TRAJEVENT_STREAM_MAX_TOTAL", 256),
		KeepaliveInterval:  seconds(logger, "TRAJEVENT_STREAM_KEEPALIVE_INTERVAL", 15*time.Second),
	}

	logger.Debug("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)
	return cfg
}

func positiveInt(logger *slog.Logger, name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func seconds(logger *slog.Logger, name string, def time.Duration) time.Duration {
	return time.Duration(positiveInt(logger, name, int(def/time.Second))) * time.Second
}

func loadSearchConfig(logger *slog.Logger) SearchConfig {
	cfg := SearchConfig{
		Workers: positiveInt(logger, "TRAJEVENT_SEARCH_WORKERS", runtime.NumCPU()),
		Step:    seconds(logger, "TRAJEVENT_SEARCH_STEP", 30*time.Second),
		Span:    seconds(logger, "TRAJEVENT_SEARCH_SPAN", 24*time.Hour),
	}

	logger.Debug("search config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"span_seconds", cfg.Span.Seconds(),
	)
	return cfg
}

func loadTLEConfig(logger *slog.Logger) TLEConfig {
	cfg := TLEConfig{
		EnableFetch: false,
		CacheDir:    "/tmp/trajevent/tle",
		MaxFiles:    5,
		MaxAge:      24 * time.Hour,
	}

	if v := os.Getenv("TRAJEVENT_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TRAJEVENT_ENABLE_TLE_FETCH value, defaulting to false", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("TRAJEVENT_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("TRAJEVENT_TLE_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.ExtraSourceURLs = urls
	}

	if v := os.Getenv("TRAJEVENT_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	cfg.MaxFiles = positiveInt(logger, "TRAJEVENT_TLE_CACHE_FILES", cfg.MaxFiles)
	cfg.MaxAge = seconds(logger, "TRAJEVENT_TLE_MAX_AGE", cfg.MaxAge)

	logger.Debug("TLE config",
		"enable_fetch", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
	)
	return cfg
}

func loadStation(logger *slog.Logger) *Station {
	lat, lon := os.Getenv("TRAJEVENT_STATION_LAT"), os.Getenv("TRAJEVENT_STATION_LON")
	if lat == "" && lon == "" {
		return nil
	}

	st := &Station{Name: os.Getenv("TRAJEVENT_STATION_NAME")}
	var err error
	if st.LatDeg, err = strconv.ParseFloat(lat, 64); err != nil {
		logger.Warn("invalid TRAJEVENT_STATION_LAT value, ground station disabled", "value", lat)
		return nil
	}
	if st.LonDeg, err = strconv.ParseFloat(lon, 64); err != nil {
		logger.Warn("invalid TRAJEVENT_STATION_LON value, ground station disabled", "value", lon)
		return nil
	}
	if v := os.Getenv("TRAJEVENT_STATION_ALT"); v != "" {
		if st.AltKm, err = strconv.ParseFloat(v, 64); err != nil {
			logger.Warn("invalid TRAJEVENT_STATION_ALT value, using sea level", "value", v)
			st.AltKm = 0
		}
	}
	if err := st.Validate(); err != nil {
		logger.Warn("invalid ground station, disabled", "error", err)
		return nil
	}
	return st
}
