package logging

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	ConnectionIDKey  contextKey = "connection_id"
	UserIDKey        contextKey = "user_id"
	RoomIDKey        contextKey = "room_id"
)

// Initialize sets up the global logger. Lines go to stdout and, when logDir
// is non-empty, to log/<UTC-date>.log inside it, formatted as
// "HH:MM:SS LEVEL - message" with structured fields appended.
func Initialize(development bool, logDir string) error {
	var err error
	once.Do(func() {
		config := zap.NewProductionConfig()
		if development {
			config = zap.NewDevelopmentConfig()
		}
		config.Encoding = "console"
		config.EncoderConfig.TimeKey = "time"
		config.EncoderConfig.EncodeTime = utcClockTimeEncoder
		config.EncoderConfig.EncodeLevel = dashedLevelEncoder
		config.EncoderConfig.ConsoleSeparator = " "
		// Caller and stacktrace annotations would break the fixed
		// "HH:MM:SS LEVEL - message" line shape.
		config.DisableCaller = true
		config.DisableStacktrace = true

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		if logDir != "" {
			if mkErr := os.MkdirAll(logDir, 0o755); mkErr != nil {
				err = mkErr
				return
			}
			name := time.Now().UTC().Format("2006-01-02") + ".log"
			config.OutputPaths = append(config.OutputPaths, filepath.Join(logDir, name))
		}

		logger, err = config.Build()
	})
	return err
}

// utcClockTimeEncoder renders the wall clock as HH:MM:SS in UTC.
func utcClockTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("15:04:05"))
}

// dashedLevelEncoder renders "LEVEL -" so the line reads
// "HH:MM:SS LEVEL - message".
func dashedLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(l.CapitalString() + " -")
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback specific for tests or before init
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// Debug logs a message at DebugLevel
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, appendContextFields(ctx, fields)...)
}

// Info logs a message at InfoLevel
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

// Warn logs a message at WarnLevel
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

// Error logs a message at ErrorLevel
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

// Fatal logs a message at FatalLevel
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, appendContextFields(ctx, fields)...)
}

// appendContextFields lifts request-scoped identifiers out of ctx so every
// log line carries them without each call site repeating the fields.
func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	if cid, ok := ctx.Value(CorrelationIDKey).(string); ok {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if conn, ok := ctx.Value(ConnectionIDKey).(string); ok {
		fields = append(fields, zap.String("connection_id", conn))
	}
	if uid, ok := ctx.Value(UserIDKey).(string); ok {
		fields = append(fields, zap.String("user_id", uid))
	}
	if rid, ok := ctx.Value(RoomIDKey).(string); ok {
		fields = append(fields, zap.String("room_id", rid))
	}

	return fields
}
