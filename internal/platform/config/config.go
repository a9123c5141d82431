// Package config assembles the server configuration. Sources apply in
// order: built-in defaults, an optional YAML file, SCORING_* environment
// variables, then command-line flags. The result is validated once.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	pstrings "scoring/pkg/platform/strings"
	"scoring/pkg/validation"
)

// Config is the full server configuration.
type Config struct {
	Server  Server      `yaml:"server"`
	Log     Log         `yaml:"log"`
	Auth    Auth        `yaml:"auth"`
	Redis   RedisConfig `yaml:"redis"`
	Store   Store       `yaml:"store"`
	Scoring Scoring     `yaml:"scoring"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	Environment     string        `yaml:"environment" validate:"notblank"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gt=0"`
	TrustedProxies  []string      `yaml:"trusted_proxies" validate:"dive,cidr|ip"`
}

// Addr is the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Log struct {
	// File receives JSON log lines; empty means stdout.
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type Auth struct {
	Salt      string `yaml:"salt" validate:"notblank"`
	AdminSalt string `yaml:"admin_salt" validate:"notblank"`
}

// RedisConfig configures the cache connection. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string        `yaml:"url" validate:"omitempty,url"`
	PoolSize     int           `yaml:"pool_size" validate:"gte=0"`
	MinIdleConns int           `yaml:"min_idle_conns" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gte=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	// StatsInterval is how often pool statistics are exported.
	StatsInterval time.Duration `yaml:"stats_interval" validate:"gt=0"`
}

// Store configures retries and the breaker around the cache.
type Store struct {
	Attempts         int           `yaml:"attempts" validate:"gte=1,lte=20"`
	RetryInterval    time.Duration `yaml:"retry_interval" validate:"gte=0"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=1"`
	SuccessThreshold int           `yaml:"success_threshold" validate:"gte=1"`
	// SeedFile is a YAML interests file loaded into the in-memory store.
	SeedFile string `yaml:"seed_file"`
	// SweepInterval is how often the in-memory store drops expired entries.
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type Scoring struct {
	ScoreTTL time.Duration `yaml:"score_ttl" validate:"gt=0"`
	Fanout   int           `yaml:"fanout" validate:"gte=1,lte=256"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			Environment:     "local",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		Log: Log{Level: "info"},
		Auth: Auth{
			Salt:      "Otus",
			AdminSalt: "42",
		},
		Redis: RedisConfig{
			PoolSize:      10,
			MinIdleConns:  2,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			StatsInterval: 15 * time.Second,
		},
		Store: Store{
			Attempts:         5,
			RetryInterval:    50 * time.Millisecond,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			SweepInterval:    time.Minute,
		},
		Scoring: Scoring{
			ScoreTTL: time.Hour,
			Fanout:   8,
		},
	}
}

// ErrHelp is returned by Load when -h or --help was given.
var ErrHelp = pflag.ErrHelp

// Load builds the configuration from args (without the program name) and
// the environment lookup getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg := Default()

	path, _ := fs.GetString("config")
	if path == "" {
		path = getenv("SCORING_CONFIG")
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	applyFlags(&cfg, fs)

	if err := validation.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// NewFlagSet declares the server flags.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("scoring", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "YAML config file")
	fs.IntP("port", "p", 0, "listen port (default 8080)")
	fs.String("host", "", "listen host")
	fs.StringP("log", "l", "", "write JSON logs to this file instead of stdout")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("redis-url", "", "redis URL, e.g. redis://localhost:6379/0; empty uses the in-memory store")
	fs.String("seed", "", "YAML file of client interests loaded into the in-memory store")
	return fs
}

func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SCORING_HOST", &cfg.Server.Host)
	str("SCORING_ENV", &cfg.Server.Environment)
	str("SCORING_LOG", &cfg.Log.File)
	str("SCORING_LOG_LEVEL", &cfg.Log.Level)
	str("SCORING_SALT", &cfg.Auth.Salt)
	str("SCORING_ADMIN_SALT", &cfg.Auth.AdminSalt)
	str("REDIS_URL", &cfg.Redis.URL)
	str("SCORING_SEED", &cfg.Store.SeedFile)

	if v := getenv("SCORING_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = pstrings.SplitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SCORING_PORT", &cfg.Server.Port},
		{"SCORING_STORE_ATTEMPTS", &cfg.Store.Attempts},
		{"SCORING_FANOUT", &cfg.Scoring.Fanout},
	}
	for _, e := range ints {
		if v := getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCORING_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout},
		{"SCORING_STORE_RETRY_INTERVAL", &cfg.Store.RetryInterval},
		{"SCORING_SCORE_TTL", &cfg.Scoring.ScoreTTL},
		{"SCORING_STORE_SWEEP_INTERVAL", &cfg.Store.SweepInterval},
	}
	for _, e := range durations {
		if v := getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = d
		}
	}
	return nil
}

// applyFlags copies only the flags given on the command line.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port, _ = fs.GetInt("port")
		case "host":
			cfg.Server.Host = f.Value.String()
		case "log":
			cfg.Log.File = f.Value.String()
		case "log-level":
			cfg.Log.Level = f.Value.String()
		case "redis-url":
			cfg.Redis.URL = f.Value.String()
		case "seed":
			cfg.Store.SeedFile = f.Value.String()
		}
	})
}
