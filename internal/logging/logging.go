package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Logger writes leveled, tagged lines to stdout and a size-rotated log file.
type Logger struct {
	std   *log.Logger
	file  io.Closer
	level Level
}

// New creates a Logger. If logFile is empty, output goes to stdout only.
func New(logFile string, level Level) (*Logger, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	return &Logger{
		std:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		file:  closer,
		level: level,
	}, nil
}

func (l *Logger) Debugf(format string, v ...any) { l.emit(Debug, "[DEBUG]", format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.emit(Info, "[INFO] ", format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.emit(Warn, "[WARN] ", format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.emit(Error, "[ERROR]", format, v...) }

func (l *Logger) emit(lvl Level, tag, format string, v ...any) {
	if l == nil || lvl < l.level {
		return
	}
	l.std.Printf(tag+" "+format, v...)
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
