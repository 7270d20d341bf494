// Package log wraps zap into the leveled, structured Logger interface used
// throughout the node.
package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type log struct {
	*zap.SugaredLogger
}

// Logger is the leveled, structured logger every component is constructed
// with. Nothing in this module reaches for the global zap logger directly.
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	Fatalw(msg string, keyvals ...interface{})
	With(args ...interface{}) Logger
	Named(s string) Logger
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

func (l *log) Named(s string) Logger {
	return &log{l.SugaredLogger.Named(s)}
}

const (
	InfoLevel  = int(zapcore.InfoLevel)
	DebugLevel = int(zapcore.DebugLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
	WarnLevel  = int(zapcore.WarnLevel)
)

// DefaultLevel is used by DefaultLogger; change it before the first call to
// DefaultLogger to affect the package-wide default.
var DefaultLevel = InfoLevel

func init() {
	if env, ok := os.LookupEnv("RANDCAST_NODE_LOGS"); ok && env == "DEBUG" {
		DefaultLevel = DebugLevel
	}
}

var once sync.Once
var defaultLogger Logger

// DefaultLogger returns a JSON logger at DefaultLevel, memoized.
func DefaultLogger() Logger {
	once.Do(func() {
		defaultLogger = New(os.Stdout, DefaultLevel, true)
	})
	return defaultLogger
}

// New builds a logger writing to output at the given level, either as JSON
// (for production) or human-readable console output (for local dev).
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if isJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, output, zapcore.Level(level))
	zl := zap.New(core, zap.WithCaller(true))
	return &log{zl.Sugar()}
}

type ctxKey string

const loggerCtxKey ctxKey = "randcastLogger"

// ToContext attaches a Logger to ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, l)
}

// FromContextOrDefault returns the Logger attached to ctx, or DefaultLogger()
// if none was attached.
func FromContextOrDefault(ctx context.Context) Logger {
	l, ok := ctx.Value(loggerCtxKey).(Logger)
	if !ok {
		return DefaultLogger()
	}
	return l
}
