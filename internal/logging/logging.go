// Package logging provides structured logging configuration.
package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New creates a new configured zap logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}

	return logger.With(zap.String("service", "ucams")), nil
}

// Sync flushes any buffered log entries.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Component returns a zap field for the component name.
func Component(name string) zap.Field { return zap.String("component", name) }

// Account returns a zap field for the configured account name.
func Account(name string) zap.Field { return zap.String("account", name) }

// CameraID returns a zap field for a camera number.
func CameraID(id string) zap.Field { return zap.String("camera_id", id) }

// DeviceID returns a zap field for a shared access device id.
func DeviceID(id int) zap.Field { return zap.Int("device_id", id) }

// Capability returns a zap field for a capability URL kind.
func Capability(c string) zap.Field { return zap.String("capability", c) }

// Origin returns a zap field for a backend base URL.
func Origin(url string) zap.Field { return zap.String("origin", url) }

// Page returns a zap field for a listing page number.
func Page(n int) zap.Field { return zap.Int("page", n) }

// Status returns a zap field for an HTTP status code.
func Status(code int) zap.Field { return zap.Int("status", code) }

// Path returns a zap field for a URL path.
func Path(path string) zap.Field { return zap.String("path", path) }

// Expiry returns a zap field for a token expiry.
func Expiry(t time.Time) zap.Field { return zap.Time("expiry", t) }
