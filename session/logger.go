package session

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/databroker/resource"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the session package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the session package's logger.
// This must be called before any session is created.
func SetLogger(l *zap.Logger) {
	logger = l
}

// logObserver writes resource lifecycle events at debug level.
type logObserver struct {
	log *zap.Logger
}

func (o *logObserver) OnResourceEvent(e resource.Event) {
	if ce := o.log.Check(zapcore.DebugLevel, "resource "+e.Type.String()); ce != nil {
		fields := []zap.Field{
			zap.Int("id", int(e.Object.ID)),
			zap.Stringer("family", e.Object.Family),
			zap.Stringer("method", e.Object.Method),
			zap.Stringer("direction", e.Object.Direction),
		}
		if e.Type == resource.EventDestroyed {
			fields = append(fields, zap.Bool("released", e.Released), zap.Bool("closed", e.Closed))
		}
		ce.Write(fields...)
	}
}
