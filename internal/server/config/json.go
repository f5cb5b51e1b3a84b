package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tailscale/hujson"

	"github.com/dmitrijs2005/handlewatch/internal/flagx"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

// JsonConfig is the shape of the JSON config file. Comments and trailing
// commas are allowed. Absent fields leave the current value alone.
type JsonConfig struct {
	GRPCAddr            string            `json:"grpc_addr"`
	HTTPAddr            string            `json:"http_addr"`
	DBDriver            string            `json:"db_driver"`
	DatabaseDSN         string            `json:"database_dsn"`
	SecretKey           string            `json:"secret_key"`
	AccessTokenValidity timex.Duration    `json:"access_token_validity"`
	AppID               int               `json:"api_id"`
	AppHash             string            `json:"api_hash"`
	SessionPath         string            `json:"session_path"`
	HandshakeTimeout    timex.Duration    `json:"handshake_timeout"`
	Operators           map[string]string `json:"operators"`
	Concurrency         int               `json:"concurrency"`
	BatchSize           int               `json:"batch_size"`
	LookupDelay         timex.Duration    `json:"lookup_delay"`
	BatchDelay          timex.Duration    `json:"batch_delay"`
	CycleDelay          timex.Duration    `json:"cycle_delay"`
	EmptyPoll           timex.Duration    `json:"empty_poll"`
	ErrorBackoff        timex.Duration    `json:"error_backoff"`
	ThrottleRecheck     timex.Duration    `json:"throttle_recheck"`
	LogLevel            string            `json:"log_level"`
	LogDir              string            `json:"log_dir"`
	ExportDir           string            `json:"export_dir"`
	S3Bucket            string            `json:"s3_bucket"`
	S3Region            string            `json:"s3_region"`
	S3Endpoint          string            `json:"s3_endpoint"`
	S3AccessKey         string            `json:"s3_access_key"`
	S3SecretKey         string            `json:"s3_secret_key"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson loads the file named by -c or -config, if any.
func parseJson(config *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(std, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DBDriver, c.DBDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidity, c.AccessTokenValidity)
	setInt(&config.AppID, c.AppID)
	setString(&config.AppHash, c.AppHash)
	setString(&config.SessionPath, c.SessionPath)
	setDuration(&config.HandshakeTimeout, c.HandshakeTimeout)
	setInt(&config.Concurrency, c.Concurrency)
	setInt(&config.BatchSize, c.BatchSize)
	setDuration(&config.LookupDelay, c.LookupDelay)
	setDuration(&config.BatchDelay, c.BatchDelay)
	setDuration(&config.CycleDelay, c.CycleDelay)
	setDuration(&config.EmptyPoll, c.EmptyPoll)
	setDuration(&config.ErrorBackoff, c.ErrorBackoff)
	setDuration(&config.ThrottleRecheck, c.ThrottleRecheck)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogDir, c.LogDir)
	setString(&config.ExportDir, c.ExportDir)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	for k, hash := range c.Operators {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return fmt.Errorf("operators: id %q: %w", k, err)
		}
		if config.Operators == nil {
			config.Operators = map[int64]string{}
		}
		config.Operators[id] = hash
	}
	return nil
}
