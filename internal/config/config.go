// Package config implements TOML configuration loading, validation, and
// override resolution for the pickoala CLI.
//
// Values are layered: built-in defaults, then the config file, then
// environment variables, then command-line flags.
package config

import "time"

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
	Network   NetworkConfig   `toml:"network"`
}

// ServerConfig selects the API server and presentation defaults.
type ServerConfig struct {
	URL      string `toml:"url"`
	Locale   string `toml:"locale"`
	Timezone string `toml:"timezone"`
}

// TransfersConfig controls the chunked upload engine.
type TransfersConfig struct {
	ChunkSize       string `toml:"chunk_size"`
	MaxRetries      int    `toml:"max_retries"`
	ParallelUploads int    `toml:"parallel_uploads"`
	UploadMode      string `toml:"upload_mode"`
	Resume          bool   `toml:"resume"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from command-line flags. Empty values mean
// "not specified".
type CLIOverrides struct {
	ConfigPath string
	Server     string
}

// Resolved is the effective configuration after every override layer, with
// string settings parsed into their typed forms.
type Resolved struct {
	ConfigPath string
	DataDir    string

	ServerURL string
	Locale    string
	Timezone  string

	ChunkSize       int64
	MaxRetries      int
	ParallelUploads int
	UploadMode      string
	Resume          bool

	LogLevel  string
	LogFormat string

	ConnectTimeout time.Duration
	UserAgent      string
}
