package config

import "github.com/pickoala/pickoala-cli/internal/api"

// Default values for configuration options.
const (
	defaultLocale          = "en"
	defaultChunkSize       = "20MiB"
	defaultMaxRetries      = 3
	defaultParallelUploads = 2
	defaultUploadMode      = "file"
	defaultResume          = true
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
)

// DefaultConfig returns a Config populated with all default values. Used
// when no config file exists and as the base the file is decoded over, so
// keys omitted from the file keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:    api.DefaultBaseURL,
			Locale: defaultLocale,
		},
		Transfers: TransfersConfig{
			ChunkSize:       defaultChunkSize,
			MaxRetries:      defaultMaxRetries,
			ParallelUploads: defaultParallelUploads,
			UploadMode:      defaultUploadMode,
			Resume:          defaultResume,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
		},
	}
}
