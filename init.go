package calibrator

import (
	"os"
	"strconv"

	"github.com/raykavin/calibrator/pkg/logger"
	"github.com/raykavin/calibrator/pkg/logger/zerolog"
)

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

// Environment variable names
const (
	envLogLevel      = "CALIBRATOR_LOG_LEVEL"
	envLogTimeFormat = "CALIBRATOR_LOG_TIME_FORMAT"
	envLogColor      = "CALIBRATOR_LOG_COLOR"
	envLogJSON       = "CALIBRATOR_LOG_JSON"
)

// DefaultLog is the logger used when no other logger is configured
var DefaultLog logger.Logger

func init() {
	log, err := NewLogFromEnv()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// NewLogFromEnv builds a logger configured from the CALIBRATOR_LOG_*
// environment variables
func NewLogFromEnv() (*zerolog.Adapter, error) {
	logLevel := getEnvWithDefault(envLogLevel, defaultLogLevel)
	logTimeFormat := getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat)

	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}

	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	log, err := zerolog.New(logLevel, logTimeFormat, logColored, logJSON)
	if err != nil {
		return nil, err
	}

	return zerolog.NewAdapter(log), nil
}

// getEnvWithDefault returns the value of the environment variable or the default if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseBoolEnv gets a boolean environment variable with a default value
func parseBoolEnv(key, defaultValue string) (bool, error) {
	value := getEnvWithDefault(key, defaultValue)
	return strconv.ParseBool(value)
}
