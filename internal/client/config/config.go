package config

import "time"

// Config holds runtime settings for the console.
type Config struct {
	ServerEndpointAddr string
	OperatorID         int64
	ReconnectInterval  time.Duration
	RequestTimeout     time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.ReconnectInterval = 3 * time.Second
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig applies defaults, then the JSON file, then flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
