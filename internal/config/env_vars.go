package config

import "os"

const (
	KeyAppName     = "app_name"
	KeyEnv         = "env"
	KeyLogLevel    = "log_level"
	KeyMetricsAddr = "metrics_addr"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.getString(KeyAppName)
}

// GetEnv is DEV for local runs and selects console logging.
func (e EnvVars) GetEnv() string {
	return e.src.getString(KeyEnv)
}

func (e EnvVars) GetLogLevel() string {
	return e.src.getString(KeyLogLevel)
}

func (e EnvVars) GetMetricsAddr() string {
	return e.src.getString(KeyMetricsAddr)
}

// GetEnv reads an unprefixed variable that is owned by another tool, such as
// an emulator host.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
