package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	maxMessageSize = 80
	maxFileSize    = 18
	maxLineSize    = 4
)

// New builds a zerolog logger writing to stdout. Console output is
// colorized with goterm unless jsonFormat is set.
func New(level, dateTimeLayout string, colored, jsonFormat bool) (*zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, level, dateTimeLayout, colored, jsonFormat)
}

// NewWithWriter is like New but writes to out
func NewWithWriter(out io.Writer, level, dateTimeLayout string, colored, jsonFormat bool) (*zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(logLevel)

	if jsonFormat {
		zerolog.TimeFieldFormat = time.RFC3339
		logger := zerolog.New(out).With().Timestamp().Caller().Logger()
		return &logger, nil
	}

	output := zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       !colored,
		TimeFormat:    dateTimeLayout,
		FormatLevel:   formatLevel,
		FormatMessage: formatMessage,
		FormatCaller:  formatCaller,
		FormatTimestamp: func(i interface{}) string {
			return formatTimestamp(i, dateTimeLayout)
		},
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &logger, nil
}

func formatLevel(i interface{}) string {
	level, _ := i.(string)

	switch level {
	case zerolog.LevelTraceValue:
		return term.Cyanf("[TRC]")
	case zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue:
		return term.Redf("[FTL]")
	case zerolog.LevelPanicValue:
		return term.Redf("[PAN]")
	default:
		return term.Whitef("[UNK]")
	}
}

func formatMessage(i interface{}) string {
	msg, ok := i.(string)
	if !ok || msg == "" {
		return ">"
	}

	if len(msg) > maxMessageSize {
		msg = msg[:maxMessageSize]
	}
	return term.Whitef("> %-*s", maxMessageSize, msg)
}

func formatCaller(i interface{}) string {
	fname, ok := i.(string)
	if !ok || fname == "" {
		return ""
	}

	caller := filepath.Base(fname)
	file, line, found := strings.Cut(caller, ":")
	if !found {
		return caller
	}

	if len(file) > maxFileSize {
		file = file[:maxFileSize]
	}
	if len(line) > maxLineSize {
		line = line[len(line)-maxLineSize:]
	}

	return term.Yellowf("[%-*s:%*s]", maxFileSize, file, maxLineSize, line)
}

func formatTimestamp(i interface{}, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.ParseInLocation(time.RFC3339, raw, time.Local); err == nil {
		raw = ts.In(time.Local).Format(layout)
	}
	return term.Cyanf("[%s]", raw)
}
