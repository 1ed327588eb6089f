package main

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	auth "github.com/goliatone/go-careauth"
	"github.com/goliatone/go-careauth/activitymap"
	"github.com/goliatone/go-careauth/config"
)

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newLogger builds the service logger
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Development {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// activityLogger writes every auth activity event as a structured log line
func activityLogger(lgr *zap.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		n := activitymap.Normalize(event)
		lgr.Info("activity",
			zap.String("actor_id", n.ActorID),
			zap.String("verb", n.Verb),
			zap.String("object_type", n.ObjectType),
			zap.String("object_id", n.ObjectID),
			zap.String("channel", n.Channel),
			zap.String("email", n.Email),
			zap.Any("metadata", n.Metadata),
			zap.Time("occurred_at", n.OccurredAt),
		)
		return nil
	})
}
