//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//lint:file-ignore U1001 Ignore all unused code, it's external

// Logger is a module-scoped wrapper around zap.Logger.  Every entry carries the
// module name plus an actor (the component emitting the entry) and an action
// (the operation it was performing).
type Logger struct {
	module string
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	level  zapcore.Level
	writer io.Writer
}

const (
	actor     = "actor"
	action    = "action"
	defActor  = "sys"
	defAction = "unk"
	module    = "module"
)

// internal function to create a logger without tracking. Application should
// call GetLogger() to retrieve a configured logger.
func newLogger(module string) *Logger {
	l := &Logger{
		module: module,
		level:  zapcore.InfoLevel,
	}
	l.rebuild()

	return l
}

func newEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	if os.Getenv("LOG_FORMATTER") == "text" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// rebuild recreates the underlying zap logger from the current level and writer
func (l *Logger) rebuild() {
	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(l.Out()), l.level)

	options := []zap.Option{
		zap.AddCallerSkip(1), // skip this wrapper
	}
	if os.Getenv("LOG_REPORT_CALLER") != "" {
		options = append(options, zap.AddCaller())
	}

	l.logger = zap.New(core, options...)
	l.sugar = l.logger.Sugar()
}

// IsDebugEnabled returns true if the current logging level is debug or higher.
// Use it to guard debug output that is expensive to compute:
//
//	if logger.IsDebugEnabled() {
//	    logger.Debugf(agent, "emit", "record: %+v", rec)
//	}
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zapcore.DebugLevel
}

// IsTraceEnabled ...
func (l *Logger) IsTraceEnabled() bool {
	return l.level <= zapcore.DebugLevel // zap doesn't have trace, use debug
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level = level
	l.rebuild()
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level zapcore.Level) bool {
	return l.level <= level
}

// Out returns the output writer, stdout unless overridden with SetOut
func (l *Logger) Out() io.Writer {
	if l.writer != nil {
		return l.writer
	}
	return os.Stdout
}

// SetOut sets the output writer (for tests)
func (l *Logger) SetOut(w io.Writer) {
	l.writer = w
	l.rebuild()
}

// Zap exposes the underlying zap logger, for components that want structured fields
func (l *Logger) Zap() *zap.Logger {
	return l.logger.WithOptions(zap.AddCallerSkip(-1)).With(zap.String(module, l.module))
}

func (l *Logger) entry(actorID, actionID string) *zap.SugaredLogger {
	return l.sugar.With(
		zap.String(actor, actorID),
		zap.String(action, actionID),
		zap.String(module, l.module),
	)
}

// Fatal logs fatal message
func (l *Logger) Fatal(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Fatal(args...)
}

// Fatalf logs fatal message
func (l *Logger) Fatalf(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Fatalf(format, args...)
}

// Panic logs panic message
func (l *Logger) Panic(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Panic(args...)
}

// Panicf logs panic message
func (l *Logger) Panicf(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Panicf(format, args...)
}

// Trace log trace message
func (l *Logger) Trace(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Debug(args...)
}

// Tracef log trace message
func (l *Logger) Tracef(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Debugf(format, args...)
}

// Debug log debug message
func (l *Logger) Debug(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Debug(args...)
}

// Debugf log debug message
func (l *Logger) Debugf(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Debugf(format, args...)
}

// Info logs info message
func (l *Logger) Info(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Info(args...)
}

// Infof logs info message
func (l *Logger) Infof(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Infof(format, args...)
}

// Warn logs warning message
func (l *Logger) Warn(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Warn(args...)
}

// Warnf logs warning message
func (l *Logger) Warnf(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Warnf(format, args...)
}

// Error logs error message
func (l *Logger) Error(actorID, actionID string, args ...interface{}) {
	l.entry(actorID, actionID).Error(args...)
}

// Errorf logs error message
func (l *Logger) Errorf(actorID, actionID string, format string, args ...interface{}) {
	l.entry(actorID, actionID).Errorf(format, args...)
}

// Below are functions using default actor and action

// SysDebugf logs debug message with default actor and action
func (l *Logger) SysDebugf(format string, args ...interface{}) {
	l.entry(defActor, defAction).Debugf(format, args...)
}

// SysInfo logs info message with default actor and action
func (l *Logger) SysInfo(args ...interface{}) {
	l.entry(defActor, defAction).Info(args...)
}

// SysInfof logs info message with default actor and action
func (l *Logger) SysInfof(format string, args ...interface{}) {
	l.entry(defActor, defAction).Infof(format, args...)
}

// SysWarnf logs warning message with default actor and action
func (l *Logger) SysWarnf(format string, args ...interface{}) {
	l.entry(defActor, defAction).Warnf(format, args...)
}

// SysErrorf logs error message with default actor and action
func (l *Logger) SysErrorf(format string, args ...interface{}) {
	l.entry(defActor, defAction).Errorf(format, args...)
}
