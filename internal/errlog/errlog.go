// Package errlog keeps a plain-text, append-only record of failed classification
// requests. Each line is "<timestamp> - <message>".
package errlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// TimeFormat of the timestamp at the start of every line.
const TimeFormat = "2006-01-02 15:04:05"

// DefaultPath is relative to the working directory of the process.
const DefaultPath = "error_log.txt"

// Logger appends failure lines to a file. The file is opened for every write, so it can
// be rotated or deleted underneath a running process.
type Logger struct {
	path string
	log  logs.Log
	now  func() time.Time
	mu   sync.Mutex
}

// New returns a Logger writing to path. Problems writing the file are reported to log
// and otherwise ignored.
func New(path string, log logs.Log) *Logger {
	if path == "" {
		path = DefaultPath
	}
	return &Logger{
		path: path,
		log:  log,
		now:  time.Now,
	}
}

func (l *Logger) Path() string {
	return l.path
}

// Log appends one line for message. It never fails; newlines inside message are
// flattened so that each failure stays on a single line.
func (l *Logger) Log(message string) {
	message = strings.ReplaceAll(strings.TrimSpace(message), "\n", " ")
	line := fmt.Sprintf("%v - %v\n", l.now().Format(TimeFormat), message)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.append(line); err != nil {
		l.log.Errorf("Failed to write error log %v: %v", l.path, err)
	}
}

// LogError is Log(err.Error()).
func (l *Logger) LogError(err error) {
	if err == nil {
		return
	}
	l.Log(err.Error())
}

func (l *Logger) append(line string) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
