package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/flagx"
)

func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-o", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.Int64Var(&cfg.OperatorID, "o", cfg.OperatorID, "operator id")
	reconnect := fs.Int("i", int(cfg.ReconnectInterval.Seconds()), "event stream reconnect interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.ReconnectInterval = time.Duration(*reconnect) * time.Second
	return nil
}
