// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package logger

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"sgpassthru/pkg/common"
	"strings"
	"sync"
)

type LogLevel int

const (
	Error = LogLevel(iota)
	Warning
	Info
	Debug
)

var levelNames = map[LogLevel]string{
	Error:   "ERROR",
	Warning: "WARNING",
	Info:    "INFO",
	Debug:   "DEBUG",
}

func (level LogLevel) String() string {
	name, ok := levelNames[level]
	if !ok {
		return fmt.Sprintf("LEVEL(%d)", int(level))
	}
	return name
}

// FromVerbosity maps the pass-through verbose argument onto a level:
// 0 errors only, 1 warnings, 2-3 info, 4 and more debug.
func FromVerbosity(verbose int) LogLevel {
	switch {
	case verbose <= 0:
		return Error
	case verbose == 1:
		return Warning
	case verbose < 4:
		return Info
	default:
		return Debug
	}
}

type LoggingConfig struct {
	lock   sync.RWMutex
	level  LogLevel
	output io.Writer
}

var (
	configOnce     sync.Once
	configInstance *LoggingConfig
)

func GetLoggingConfig() *LoggingConfig {
	configOnce.Do(func() {
		configInstance = &LoggingConfig{
			level:  Warning,
			output: os.Stderr,
		}
	})
	return configInstance
}

func SetLoggingConfig(level LogLevel) {
	config := GetLoggingConfig()
	config.lock.Lock()
	defer config.lock.Unlock()
	config.level = level
}

// SetOutput redirects every logger created afterwards.
func SetOutput(output io.Writer) {
	config := GetLoggingConfig()
	config.lock.Lock()
	defer config.lock.Unlock()
	config.output = output
}

type Logger struct {
	level   LogLevel
	loggers map[LogLevel]*log.Logger
}

func GetLogger() *Logger {
	config := GetLoggingConfig()
	config.lock.RLock()
	level, output := config.level, config.output
	config.lock.RUnlock()
	name := common.GetTraceInfo()
	loggers := make(map[LogLevel]*log.Logger, len(levelNames))
	for messageLevel, levelName := range levelNames {
		loggers[messageLevel] = log.New(
			output,
			fmt.Sprintf("%s: %s ", levelName, name),
			log.Ldate|log.Ltime,
		)
	}
	return &Logger{level: level, loggers: loggers}
}

func (logger Logger) Enabled(level LogLevel) bool {
	return logger.level >= level
}

func (logger Logger) print(level LogLevel, data ...any) {
	if logger.Enabled(level) {
		logger.loggers[level].Println(data...)
	}
}

func (logger Logger) Error(data ...any) {
	logger.print(Error, data...)
}

func (logger Logger) Warn(data ...any) {
	logger.print(Warning, data...)
}

func (logger Logger) Info(data ...any) {
	logger.print(Info, data...)
}

func (logger Logger) Debug(data ...any) {
	logger.print(Debug, data...)
}

func (logger Logger) Errorf(format string, a ...any) {
	logger.Error(fmt.Sprintf(format, a...))
}

func (logger Logger) Warnf(format string, a ...any) {
	logger.Warn(fmt.Sprintf(format, a...))
}

func (logger Logger) Infof(format string, a ...any) {
	logger.Info(fmt.Sprintf(format, a...))
}

func (logger Logger) Debugf(format string, a ...any) {
	logger.Debug(fmt.Sprintf(format, a...))
}

// DebugHex dumps at most limit bytes of data, limit <= 0 dumps everything.
func (logger Logger) DebugHex(title string, data []byte, limit int) {
	if !logger.Enabled(Debug) {
		return
	}
	shown := data
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
		title = fmt.Sprintf("%s (first %d of %d bytes)", title, limit, len(data))
	} else {
		title = fmt.Sprintf("%s (%d bytes)", title, len(data))
	}
	logger.Debug(title + ":\n" + strings.TrimRight(hex.Dump(shown), "\n"))
}
