// Package logger defines the logging interface used across the calibrator.
// Implementations live in subpackages.
package logger

import (
	"fmt"
	"strings"
)

type Level int8

const (
	Disabled   Level = -1 // Disabled turns logging off.
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel // FatalLevel logs and then exits the program.
	PanicLevel // PanicLevel logs and then panics.
	NoLevel
)

var levelNames = map[Level]string{
	Disabled:   "disabled",
	TraceLevel: "trace",
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
	FatalLevel: "fatal",
	PanicLevel: "panic",
	NoLevel:    "",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel converts a level name such as "debug" into a Level
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if level != NoLevel && levelName == name {
			return level, nil
		}
	}
	return NoLevel, fmt.Errorf("unknown log level %q", name)
}

type Logger interface {
	// Contextual loggers derived from the root logger
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Print(args ...any)
	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)
	Panic(args ...any)

	Printf(format string, args ...any)
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	Panicf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}
