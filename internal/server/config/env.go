package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/handlewatch/internal/flagx"
)

const defaultEnvFile = ".env"

// loadEnvFile loads the dotenv file named by -env, or ./.env when present.
// Variables already set in the environment win.
func loadEnvFile() error {
	path := flagx.EnvFileFlags()
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}
	return godotenv.Load(path)
}

type envReader struct {
	errs []error
}

func (r *envReader) string(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) int(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

// duration accepts a Go duration ("1500ms") or whole seconds ("5").
func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// ParseOperatorIDs reads a comma separated id list.
func ParseOperatorIDs(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("operator id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseEnv overlays environment variables. ADMIN_ID lists operator ids
// that share the access key hash in HW_ADMIN_KEY_HASH.
func parseEnv(c *Config) error {
	if err := loadEnvFile(); err != nil {
		return err
	}

	r := &envReader{}
	r.string("HW_GRPC_ADDR", &c.GRPCAddr)
	r.string("HW_HTTP_ADDR", &c.HTTPAddr)
	r.string("HW_DB_DRIVER", &c.DBDriver)
	r.string("HW_DATABASE_DSN", &c.DatabaseDSN)
	r.string("HW_SECRET_KEY", &c.SecretKey)
	r.duration("HW_TOKEN_VALIDITY", &c.AccessTokenValidity)

	r.int("API_ID", &c.AppID)
	r.string("API_HASH", &c.AppHash)
	r.string("HW_SESSION_PATH", &c.SessionPath)
	r.duration("HW_HANDSHAKE_TIMEOUT", &c.HandshakeTimeout)

	r.int("HW_CONCURRENCY", &c.Concurrency)
	r.int("HW_BATCH_SIZE", &c.BatchSize)
	r.duration("HW_LOOKUP_DELAY", &c.LookupDelay)
	r.duration("HW_BATCH_DELAY", &c.BatchDelay)
	r.duration("HW_CYCLE_DELAY", &c.CycleDelay)
	r.duration("HW_EMPTY_POLL", &c.EmptyPoll)
	r.duration("HW_ERROR_BACKOFF", &c.ErrorBackoff)
	r.duration("HW_THROTTLE_RECHECK", &c.ThrottleRecheck)

	r.string("HW_LOG_LEVEL", &c.LogLevel)
	r.string("HW_LOG_DIR", &c.LogDir)
	r.string("HW_EXPORT_DIR", &c.ExportDir)

	r.string("HW_S3_BUCKET", &c.S3Bucket)
	r.string("HW_S3_REGION", &c.S3Region)
	r.string("HW_S3_ENDPOINT", &c.S3Endpoint)
	r.string("HW_S3_ACCESS_KEY", &c.S3AccessKey)
	r.string("HW_S3_SECRET_KEY", &c.S3SecretKey)

	if v := os.Getenv("ADMIN_ID"); v != "" {
		ids, err := ParseOperatorIDs(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("ADMIN_ID: %w", err))
		}
		hash := os.Getenv("HW_ADMIN_KEY_HASH")
		for _, id := range ids {
			c.Operators[id] = hash
		}
	}

	return errors.Join(r.errs...)
}
