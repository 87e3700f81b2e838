package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.Server != "" {
		cfg.Server.URL = env.Server
	}

	if env.Locale != "" {
		cfg.Server.Locale = env.Locale
	}

	if cli.Server != "" {
		cfg.Server.URL = cli.Server
	}

	// Overrides bypassed the file-level validation above.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	dataDir := DefaultDataDir()
	if env.DataDir != "" {
		dataDir = env.DataDir
	}

	return resolve(cfg, cfgPath, dataDir), nil
}

// resolve converts validated string settings into their typed forms.
func resolve(cfg *Config, cfgPath, dataDir string) *Resolved {
	// Validate has already accepted both values.
	chunkSize, _ := ParseSize(cfg.Transfers.ChunkSize)
	timeout, _ := time.ParseDuration(cfg.Network.ConnectTimeout)

	return &Resolved{
		ConfigPath:      cfgPath,
		DataDir:         dataDir,
		ServerURL:       cfg.Server.URL,
		Locale:          cfg.Server.Locale,
		Timezone:        cfg.Server.Timezone,
		ChunkSize:       chunkSize,
		MaxRetries:      cfg.Transfers.MaxRetries,
		ParallelUploads: cfg.Transfers.ParallelUploads,
		UploadMode:      cfg.Transfers.UploadMode,
		Resume:          cfg.Transfers.Resume,
		LogLevel:        cfg.Logging.LogLevel,
		LogFormat:       cfg.Logging.LogFormat,
		ConnectTimeout:  timeout,
		UserAgent:       cfg.Network.UserAgent,
	}
}
