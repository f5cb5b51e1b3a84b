package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/handlewatch/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string          gRPC bind address
//	-m string          admin HTTP bind address (/healthz, /metrics)
//	-d string          database DSN
//	-driver string     database driver: sqlite or postgres
//	-s string          JWT HMAC secret key
//	-session string    session file path
//	-l string          log level
//	-log-dir string    daily log file directory
//	-export-dir string local export directory
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-driver", "-s", "-session", "-l", "-log-dir", "-export-dir",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "address and port to run gRPC server")
	fs.StringVar(&config.HTTPAddr, "m", config.HTTPAddr, "address and port for health and metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DBDriver, "driver", config.DBDriver, "database driver")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SessionPath, "session", config.SessionPath, "session file")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogDir, "log-dir", config.LogDir, "log directory")
	fs.StringVar(&config.ExportDir, "export-dir", config.ExportDir, "export directory")

	return fs.Parse(args)
}
