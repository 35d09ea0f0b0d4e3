package config

import "time"

// Config holds runtime settings for the vault CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the vault gRPC endpoint.
//   - AccessToken: optional uploader token; required only for listing documents.
//   - RequestTimeout: deadline applied to every call.
//   - MaxMessageSize: gRPC message cap, must match the server's.
//   - Retries: how often idempotent reads are retried while the server is unavailable.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	RequestTimeout     time.Duration
	MaxMessageSize     int
	Retries            uint64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 30 * time.Second
	c.MaxMessageSize = 48 << 20
	c.Retries = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present). Command-line flags are bound by the cli package on top.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	return cfg
}
