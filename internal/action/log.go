package action

import (
	"github.com/sirupsen/logrus"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// Logger is the process-wide logger actions write to. It is a
// replaceable package variable defaulting to logrus's standard logger;
// the watch engine also logs after-hook and error-dispatch warnings to it.
var Logger = logrus.StandardLogger()

var logLevels = map[string]logrus.Level{
	"debug":    logrus.DebugLevel,
	"info":     logrus.InfoLevel,
	"warning":  logrus.WarnLevel,
	"error":    logrus.ErrorLevel,
	"critical": logrus.FatalLevel,
}

// logAction implements `log`: write the triggered comment (or a
// failure) to the process logger at a configured level.
type logAction struct {
	registry.Base
	Level      logrus.Level
	ErrorLevel logrus.Level
}

func init() {
	register("log", registry.TypeDescriptor{
		Schema: registry.Schema{
			"level":       registry.String("info"),
			"error_level": registry.String("error"),
		},
	}, func(r *registry.Resolved) (Action, error) {
		return &logAction{
			Base:       registry.NewBase(r.Tag, r.Hash),
			Level:      levelOrDefault(stringField(r.Fields, "level"), logrus.InfoLevel),
			ErrorLevel: levelOrDefault(stringField(r.Fields, "error_level"), logrus.ErrorLevel),
		}, nil
	})
}

func levelOrDefault(name string, def logrus.Level) logrus.Level {
	if lvl, ok := logLevels[name]; ok {
		return lvl
	}
	return def
}

func (a *logAction) Report(ctx *gctx.Context, cc *cache.Cache, r Report) error {
	Logger.Log(a.Level, r.Comment)
	return nil
}

func (a *logAction) Error(ctx *gctx.Context, cc *cache.Cache, f Failure) error {
	Logger.Log(a.ErrorLevel, f.Err)
	return nil
}
