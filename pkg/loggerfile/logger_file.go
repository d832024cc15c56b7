package loggerfile

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	globalLogDir = "logs"
	dirMu        sync.RWMutex
)

// SetGlobalLogDir sets the directory trace files are created under.
func SetGlobalLogDir(logDir string) {
	dirMu.Lock()
	defer dirMu.Unlock()
	globalLogDir = logDir
}

// GetGlobalLogDir returns the current global log directory
func GetGlobalLogDir() string {
	dirMu.RLock()
	defer dirMu.RUnlock()
	return globalLogDir
}

// FileLogger appends timestamped lines to a single trace file.
// A nil *FileLogger is valid and discards everything.
type FileLogger struct {
	file  *os.File
	path  string
	mutex sync.Mutex
}

// NewFileLogger opens (or creates) filePath relative to the global log directory.
func NewFileLogger(filePath string) (*FileLogger, error) {
	full := filepath.Join(GetGlobalLogDir(), filePath)
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileLogger{file: file, path: full}, nil
}

// Path returns the absolute location of the trace file.
func (fl *FileLogger) Path() string {
	if fl == nil {
		return ""
	}
	return fl.path
}

// Info writes a printf-style message.
func (fl *FileLogger) Info(message interface{}, a ...interface{}) {
	if fl == nil {
		return
	}

	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	text := fmt.Sprint(message)
	if len(a) > 0 {
		text = fmt.Sprintf(text, a...)
	}
	line := fmt.Sprintf("%s: %s\n", time.Now().Format(time.RFC3339Nano), text)
	if _, err := fl.file.WriteString(line); err != nil {
		log.Printf("Failed to write log message: %v", err)
	}
}

// Close closes the underlying file.
func (fl *FileLogger) Close() {
	if fl == nil {
		return
	}

	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	if err := fl.file.Close(); err != nil {
		log.Printf("Error closing file: %v", err)
	}
}
