package logger

import (
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LEVEL_ENV_VAR overrides the default debug level e.g. SNAPCRON_LOG_LEVEL=warn
const LEVEL_ENV_VAR = "SNAPCRON_LOG_LEVEL"

func NewLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(levelFromEnv())

	logger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}

	// flushes buffer, if any
	defer logger.Sync()

	return logger.Sugar()
}

func levelFromEnv() zapcore.Level {
	level := zapcore.DebugLevel

	value := strings.TrimSpace(os.Getenv(LEVEL_ENV_VAR))
	if value == "" {
		return level
	}

	if err := level.UnmarshalText([]byte(strings.ToLower(value))); err != nil {
		return zapcore.DebugLevel
	}

	return level
}
