// Package config loads the driver configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bcdannyboy/fdm/logging"
	"github.com/bcdannyboy/fdm/models"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

const dateLayout = "2006-01-02"

const (
	SchemeExplicit      = "explicit"
	SchemeImplicit      = "implicit"
	SchemeCrankNicolson = "crank-nicolson"
)

type Config struct {
	// EvaluationDate is the reference date of every curve and the origin of
	// all times.
	EvaluationDate time.Time
	GridPoints     int
	TimeSteps      int
	Scheme         string
	HestonScheme   models.Discretization
	Paths          int
	Seed           uint64
	LogLevel       string
	LogFormat      string
	LogFile        string
	// Output is the path of the JSON results file; "-" writes to stdout.
	Output string

	// HistoryFile, when set, holds daily bars; the Black-Scholes volatility
	// is then estimated from its last VolWindow days.
	HistoryFile  string
	VolEstimator models.Estimator
	VolWindow    int
}

func Default() Config {
	now := time.Now().UTC()
	return Config{
		EvaluationDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		GridPoints:     201,
		TimeSteps:      200,
		Scheme:         SchemeCrankNicolson,
		HestonScheme:   models.FullTruncation,
		Paths:          20000,
		Seed:           1,
		LogLevel:       "info",
		LogFormat:      "text",
		Output:         "results.json",
		VolEstimator:   models.YangZhang,
		VolWindow:      63,
	}
}

// Load reads files (".env" when none are given), ignoring missing ones,
// and then the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: loading %s: %v", ErrInvalidConfig, f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from the FDM_* variables returned by lookup.
// Unset variables keep their defaults.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("FDM_EVALUATION_DATE"); ok {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: FDM_EVALUATION_DATE %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.EvaluationDate = d
	}
	if err := positiveInt(get, "FDM_GRID_POINTS", 5, &cfg.GridPoints); err != nil {
		return Config{}, err
	}
	if err := positiveInt(get, "FDM_TIME_STEPS", 1, &cfg.TimeSteps); err != nil {
		return Config{}, err
	}
	if err := positiveInt(get, "FDM_PATHS", 2, &cfg.Paths); err != nil {
		return Config{}, err
	}
	if err := positiveInt(get, "FDM_VOL_WINDOW", 2, &cfg.VolWindow); err != nil {
		return Config{}, err
	}
	if v, ok := get("FDM_SCHEME"); ok {
		s := strings.ToLower(v)
		switch s {
		case SchemeExplicit, SchemeImplicit, SchemeCrankNicolson:
			cfg.Scheme = s
		default:
			return Config{}, fmt.Errorf("%w: FDM_SCHEME %q", ErrInvalidConfig, v)
		}
	}
	if v, ok := get("FDM_HESTON_SCHEME"); ok {
		d, err := models.ParseDiscretization(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: FDM_HESTON_SCHEME: %v", ErrInvalidConfig, err)
		}
		cfg.HestonScheme = d
	}
	if v, ok := get("FDM_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: FDM_SEED %q", ErrInvalidConfig, v)
		}
		cfg.Seed = seed
	}
	if v, ok := get("FDM_LOG_LEVEL"); ok {
		if _, err := logging.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("%w: FDM_LOG_LEVEL: %v", ErrInvalidConfig, err)
		}
		cfg.LogLevel = v
	}
	if v, ok := get("FDM_LOG_FORMAT"); ok {
		if f := strings.ToLower(v); f != "text" && f != "json" {
			return Config{}, fmt.Errorf("%w: FDM_LOG_FORMAT %q", ErrInvalidConfig, v)
		}
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := get("FDM_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v, ok := get("FDM_OUTPUT"); ok {
		cfg.Output = v
	}
	if v, ok := get("FDM_HISTORY_FILE"); ok {
		cfg.HistoryFile = v
	}
	if v, ok := get("FDM_VOL_ESTIMATOR"); ok {
		e, err := models.ParseEstimator(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: FDM_VOL_ESTIMATOR: %v", ErrInvalidConfig, err)
		}
		cfg.VolEstimator = e
	}
	return cfg, nil
}

func positiveInt(get func(string) (string, bool), key string, min int, dst *int) error {
	v, ok := get(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return fmt.Errorf("%w: %s %q, want an integer >= %d", ErrInvalidConfig, key, v, min)
	}
	*dst = n
	return nil
}

// Theta maps Scheme to the theta of the mixed scheme.
func (c Config) Theta() float64 {
	switch c.Scheme {
	case SchemeExplicit:
		return 0
	case SchemeImplicit:
		return 1
	}
	return 0.5
}

// Logging returns the logger configuration: stdout only, or stdout and a
// rotating file when LogFile is set.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	if c.LogFile != "" {
		lc.Output = "both"
		lc.FilePath = c.LogFile
	}
	return lc
}
