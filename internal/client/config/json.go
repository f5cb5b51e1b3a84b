package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/dmitrijs2005/handlewatch/internal/flagx"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

// JsonConfig is used only for unmarshalling the config file.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	OperatorID         int64          `json:"operator_id"`
	ReconnectInterval  timex.Duration `json:"reconnect_interval"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data, err = hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.OperatorID != 0 {
		cfg.OperatorID = jc.OperatorID
	}
	if jc.ReconnectInterval.Duration > 0 {
		cfg.ReconnectInterval = jc.ReconnectInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
