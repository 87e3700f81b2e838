package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "PICKOALA_CONFIG"
	EnvServer  = "PICKOALA_SERVER"
	EnvLocale  = "PICKOALA_LOCALE"
	EnvDataDir = "PICKOALA_DATA_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // PICKOALA_CONFIG: override config file path
	Server     string // PICKOALA_SERVER: API root URL
	Locale     string // PICKOALA_LOCALE: notification language
	DataDir    string // PICKOALA_DATA_DIR: token, history, and resume location
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Server:     os.Getenv(EnvServer),
		Locale:     os.Getenv(EnvLocale),
		DataDir:    os.Getenv(EnvDataDir),
	}
}
