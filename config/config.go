package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vaultdex/crypto"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	// EnvRPCToken overrides RPC.AuthToken when set.
	EnvRPCToken = "VDX_RPC_TOKEN"
	// EnvJWTSecret overrides RPC.JWTSecret when set.
	EnvJWTSecret = "VDX_JWT_SECRET"
)

// Storage backends understood by the daemon.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	DBBackend     string    `toml:"DBBackend"`
	NetworkName   string    `toml:"NetworkName"`
	ProgramID     string    `toml:"ProgramID"`
	Environment   string    `toml:"Environment"`
	LogLevel      string    `toml:"LogLevel"`
	LogFile       string    `toml:"LogFile"`
	RPC           RPC       `toml:"rpc"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// RPC controls the JSON-RPC gateway.
type RPC struct {
	AuthToken string  `toml:"AuthToken"`
	JWTSecret string  `toml:"JWTSecret"`
	RateLimit float64 `toml:"RateLimit"`
	Burst     int     `toml:"Burst"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Program decodes the configured program identity.
func (c *Config) Program() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.ProgramID))
	if err != nil {
		return [20]byte{}, fmt.Errorf("ProgramID: %w", err)
	}
	return addr.Array(), nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vdx-data"
	}
	cfg.DBBackend = strings.ToLower(strings.TrimSpace(cfg.DBBackend))
	if cfg.DBBackend == "" {
		cfg.DBBackend = BackendLevelDB
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "vdx-local"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RPC.RateLimit == 0 {
		cfg.RPC.RateLimit = 20
	}
	if cfg.RPC.Burst == 0 {
		cfg.RPC.Burst = 40
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvRPCToken)); v != "" {
		cfg.RPC.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.RPC.JWTSecret = v
	}
}

// createDefault creates and saves a default configuration file with a freshly
// generated program identity and RPC token.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":8545",
		DataDir:       "./vdx-data",
		DBBackend:     BackendLevelDB,
		NetworkName:   "vdx-local",
		ProgramID:     key.PubKey().Address().String(),
		Environment:   "dev",
		LogLevel:      "info",
		RPC:           RPC{AuthToken: uuid.NewString(), RateLimit: 20, Burst: 40},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
