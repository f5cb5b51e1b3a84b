// Package config handles configuration for the watcher daemon: defaults,
// a dotenv file and environment, a JSON overlay and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds runtime settings for the daemon.
//
// Operators maps each operator id to the bcrypt hash of its access key.
// Tunables (Concurrency through ThrottleRecheck) are the defaults for
// monitoring; values persisted with SetSetting take precedence at start.
type Config struct {
	GRPCAddr            string
	HTTPAddr            string
	DBDriver            string
	DatabaseDSN         string
	SecretKey           string
	AccessTokenValidity time.Duration

	AppID            int
	AppHash          string
	SessionPath      string
	HandshakeTimeout time.Duration
	Operators        map[int64]string

	Concurrency     int
	BatchSize       int
	LookupDelay     time.Duration
	BatchDelay      time.Duration
	CycleDelay      time.Duration
	EmptyPoll       time.Duration
	ErrorBackoff    time.Duration
	ThrottleRecheck time.Duration

	LogLevel  string
	LogDir    string
	ExportDir string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates Config with conservative development defaults.
func (c *Config) LoadDefaults() {
	c.GRPCAddr = ":50051"
	c.HTTPAddr = ":9090"
	c.DBDriver = "sqlite"
	c.DatabaseDSN = "file:handlewatch.db?_pragma=busy_timeout(5000)"
	c.SecretKey = "secretKey"
	c.AccessTokenValidity = 12 * time.Hour
	c.SessionPath = "handlewatch.session"
	c.Operators = map[int64]string{}

	c.Concurrency = 3
	c.BatchSize = 20
	c.LookupDelay = 200 * time.Millisecond
	c.BatchDelay = 5 * time.Second
	c.CycleDelay = 20 * time.Second
	c.EmptyPoll = 10 * time.Second
	c.ErrorBackoff = 5 * time.Second
	c.ThrottleRecheck = time.Minute

	c.LogLevel = "info"
	c.ExportDir = "exports"
	c.S3Region = "us-east-1"
}

// S3Enabled reports whether exports go to object storage.
func (c *Config) S3Enabled() bool { return c.S3Bucket != "" }

// OperatorIDs returns the configured operator ids.
func (c *Config) OperatorIDs() []int64 {
	ids := make([]int64, 0, len(c.Operators))
	for id := range c.Operators {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks the values the daemon cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.AppID <= 0 || c.AppHash == "" {
		errs = append(errs, errors.New("API_ID and API_HASH are required"))
	}
	if len(c.Operators) == 0 {
		errs = append(errs, errors.New("at least one operator (ADMIN_ID) is required"))
	}
	for id, hash := range c.Operators {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("operator id %d must be positive", id))
		}
		if hash == "" {
			errs = append(errs, fmt.Errorf("operator %d has no access key hash", id))
		}
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must not be empty"))
	}
	for name, v := range map[string]int{"concurrency": c.Concurrency, "batch size": c.BatchSize} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	for name, d := range map[string]time.Duration{
		"lookup delay":          c.LookupDelay,
		"batch delay":           c.BatchDelay,
		"cycle delay":           c.CycleDelay,
		"empty poll":            c.EmptyPoll,
		"error backoff":         c.ErrorBackoff,
		"throttle recheck":      c.ThrottleRecheck,
		"access token validity": c.AccessTokenValidity,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	// zero waits for the operator without a deadline
	if c.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("handshake timeout must not be negative, got %s", c.HandshakeTimeout))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then the dotenv file and
// environment, then an optional JSON file and finally command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	if err := parseJson(cfg); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
