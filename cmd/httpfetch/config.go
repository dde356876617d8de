package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/adamwoolhether/httpfetch"
)

// Environment variables read by the CLI. Values from a .env file never
// override variables already set in the process environment.
const (
	envUserAgent = "HTTPFETCH_USER_AGENT"
	envTimeout   = "HTTPFETCH_TIMEOUT"
	envLogLevel  = "HTTPFETCH_LOG_LEVEL"
	envRPS       = "HTTPFETCH_RPS"
	envBurst     = "HTTPFETCH_BURST"
	envFileURLs  = "HTTPFETCH_FILE_URLS"
)

const defaultUserAgent = "httpfetch"

type config struct {
	UserAgent string
	Timeout   time.Duration
	LogLevel  slog.Level
	RPS       int
	Burst     int
	FileURLs  bool
}

// loadConfig reads envFile, or ./.env when envFile is empty and the
// file exists, then parses the environment.
func loadConfig(envFile string) (config, error) {
	switch {
	case envFile != "":
		if err := godotenv.Load(envFile); err != nil {
			return config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	default:
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(".env"); err != nil {
				return config{}, fmt.Errorf("loading .env: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("checking .env: %w", err)
		}
	}

	cfg := config{
		UserAgent: defaultUserAgent,
		LogLevel:  slog.LevelWarn,
	}

	if v, ok := os.LookupEnv(envUserAgent); ok {
		cfg.UserAgent = v
	}

	if v := os.Getenv(envTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return config{}, fmt.Errorf("parsing %s: %w", envTimeout, err)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv(envLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return config{}, fmt.Errorf("parsing %s: %w", envLogLevel, err)
		}
	}

	var err error
	if cfg.RPS, err = intEnv(envRPS); err != nil {
		return config{}, err
	}
	if cfg.Burst, err = intEnv(envBurst); err != nil {
		return config{}, err
	}
	if cfg.RPS > 0 && cfg.Burst == 0 {
		cfg.Burst = 1
	}

	if v := os.Getenv(envFileURLs); v != "" {
		if cfg.FileURLs, err = strconv.ParseBool(v); err != nil {
			return config{}, fmt.Errorf("parsing %s: %w", envFileURLs, err)
		}
	}

	return cfg, nil
}

func intEnv(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}

	return n, nil
}

// options turns cfg into Fetcher options.
func (cfg config) options() []httpfetch.Option {
	var opts []httpfetch.Option
	if cfg.Timeout > 0 {
		opts = append(opts, httpfetch.WithTimeout(cfg.Timeout))
	}
	if cfg.RPS > 0 {
		opts = append(opts, httpfetch.WithThrottle(cfg.RPS, cfg.Burst))
	}
	if cfg.FileURLs {
		opts = append(opts, httpfetch.WithFileURLs())
	}

	return opts
}
