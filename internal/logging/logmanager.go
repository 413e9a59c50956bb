//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

//lint:file-ignore U1001 Ignore all unused code, it's external

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// defaultModule is the pseudo-module name that sets the level of every logger
// without an explicit entry
const defaultModule = "."

// LogManager keeps track of all instantiated loggers
type LogManager struct {
	loggers  map[string]*Logger
	explicit map[string]bool
	defLevel zapcore.Level
}

// Manager's singleton variables
var (
	manager *LogManager
	mu      sync.RWMutex
	once    sync.Once
)

// resetForTesting resets the manager state - only for testing
func resetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	manager = nil
	once = sync.Once{}
}

func initManager() {
	manager = &LogManager{
		loggers:  make(map[string]*Logger),
		explicit: make(map[string]bool),
		defLevel: zapcore.InfoLevel,
	}
}

// GetLogger returns a logger for the specified module
func GetLogger(module string) *Logger {
	once.Do(initManager)

	mu.RLock()
	if l := manager.loggers[module]; l != nil {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// another goroutine may have won the race while we were unlocked
	if l := manager.loggers[module]; l != nil {
		return l
	}

	l := newLogger(module)
	l.SetLevel(manager.defLevel)
	manager.loggers[module] = l

	return l
}

// parseLevel converts a string level to zapcore.Level; unknown names map to info
func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug", "trace":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// parseLevelSpec splits "mod1:debug;mod2:error;.:info" into module/level pairs.
// Whitespace is ignored and malformed entries are skipped.
func parseLevelSpec(spec string) map[string]zapcore.Level {
	spec = strings.Join(strings.Fields(spec), "")

	levels := make(map[string]zapcore.Level)
	for _, entry := range strings.Split(spec, ";") {
		mod, lvl, ok := strings.Cut(entry, ":")
		if !ok || mod == "" || strings.Contains(lvl, ":") {
			continue
		}
		levels[mod] = parseLevel(lvl)
	}

	return levels
}

// UpdateLogLevels updates log levels from a string of the form:
// "mod1:debug;mod2:error;.:info"
//
// The "." entry sets the default applied to every module without an explicit
// entry, including loggers created later.
func UpdateLogLevels(logstr string) error {
	once.Do(initManager)

	levels := parseLevelSpec(logstr)

	mu.Lock()
	defer mu.Unlock()

	for mod, level := range levels {
		if mod == defaultModule {
			continue
		}
		l := manager.loggers[mod]
		if l == nil {
			l = newLogger(mod)
			manager.loggers[mod] = l
		}
		manager.explicit[mod] = true
		l.SetLevel(level)
	}

	if def, ok := levels[defaultModule]; ok {
		manager.defLevel = def
		for mod, l := range manager.loggers {
			if !manager.explicit[mod] {
				l.SetLevel(def)
			}
		}
	}

	return nil
}
