package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
	files  []*os.File
}

// New creates a Logger writing to stdout and to one file per level inside logDir.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		log:    logrus.New(),
		logDir: logDir,
	}
	l.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.log.SetOutput(os.Stdout)

	hook := &levelFileHook{
		writers:   make(map[logrus.Level]io.Writer),
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
	}
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, file)
		switch name {
		case InfoFile:
			hook.writers[logrus.InfoLevel] = file
			hook.writers[logrus.DebugLevel] = file
		case WarningFile:
			hook.writers[logrus.WarnLevel] = file
		case ErrorFile:
			hook.writers[logrus.ErrorLevel] = file
			hook.writers[logrus.FatalLevel] = file
			hook.writers[logrus.PanicLevel] = file
		}
	}
	l.log.AddHook(hook)

	return l, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// With returns an entry carrying structured fields, e.g. the user a run belongs to.
func (l *Logger) With(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// Dir returns the directory the per-level files live in.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s content has been cleared.", fileName)
	return nil
}

// Close releases the per-level log files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

type levelFileHook struct {
	writers   map[logrus.Level]io.Writer
	formatter logrus.Formatter
	mu        sync.Mutex
}

func (h *levelFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	w, ok := h.writers[entry.Level]
	if !ok {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = w.Write(line)
	return err
}
