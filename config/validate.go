package config

import (
	"fmt"
	"net"
	"strings"
)

// MinJWTSecretBytes is the shortest HS256 secret accepted.
var MinJWTSecretBytes = 32

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("ListenAddress: %w", err)
	}
	switch c.DBBackend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("DBBackend: unsupported backend %q", c.DBBackend)
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if strings.TrimSpace(c.RPC.AuthToken) == "" && strings.TrimSpace(c.RPC.JWTSecret) == "" {
		return fmt.Errorf("rpc: AuthToken or JWTSecret required (or set %s)", EnvRPCToken)
	}
	if secret := strings.TrimSpace(c.RPC.JWTSecret); secret != "" && len(secret) < MinJWTSecretBytes {
		return fmt.Errorf("rpc: JWTSecret must be at least %d bytes", MinJWTSecretBytes)
	}
	if c.RPC.RateLimit < 0 {
		return fmt.Errorf("rpc: RateLimit must not be negative")
	}
	if c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: Burst must not be negative")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporters are enabled")
	}
	return nil
}
