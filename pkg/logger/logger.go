package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// --- Log levels ---
const (
	FLAG_TRACE = 5
	FLAG_DEBUG = 4
	FLAG_INFO  = 3
	FLAG_WARN  = 2
	FLAG_ERROR = 1
	FLAG_OFF   = 0
)

// --- ANSI color codes ---
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

type LoggerConfig struct {
	Flag       int
	Identifier string
	Color      bool
	Outputs    []io.Writer
	ErrOutput  io.Writer
}

type Logger struct {
	mu     sync.Mutex
	Config *LoggerConfig
}

var std = &Logger{Config: &LoggerConfig{
	Flag:      FLAG_INFO,
	Color:     true,
	Outputs:   []io.Writer{os.Stdout},
	ErrOutput: os.Stderr,
}}

// --- Configuration ---
func SetConfig(newConfig *LoggerConfig) {
	std.mu.Lock()
	defer std.mu.Unlock()
	cfg := *newConfig
	std.Config = &cfg
}

func SetOutputs(outputs ...io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.Config.Outputs = outputs
}

func SetFlag(flag int) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.Config.Flag = flag
}

func SetIdentifier(identifier string) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.Config.Identifier = identifier
}

func SetColor(enabled bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.Config.Color = enabled
}

// ParseLevel maps a level name from configuration to its flag.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return FLAG_TRACE, nil
	case "debug":
		return FLAG_DEBUG, nil
	case "", "info":
		return FLAG_INFO, nil
	case "warn", "warning":
		return FLAG_WARN, nil
	case "error":
		return FLAG_ERROR, nil
	case "off", "none":
		return FLAG_OFF, nil
	}
	return FLAG_INFO, fmt.Errorf("unknown log level %q", name)
}

// --- Public Log API ---
func Trace(msg interface{}, a ...interface{}) { std.log(FLAG_TRACE, Blue, "TRACE", msg, a...) }
func Debug(msg interface{}, a ...interface{}) { std.log(FLAG_DEBUG, Cyan, "DEBUG", msg, a...) }
func Info(msg interface{}, a ...interface{})  { std.log(FLAG_INFO, Green, "INFO", msg, a...) }
func Warn(msg interface{}, a ...interface{})  { std.log(FLAG_WARN, Yellow, "WARN", msg, a...) }

func Error(msg interface{}, a ...interface{}) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.Config.Flag < FLAG_ERROR {
		return
	}
	out := std.Config.ErrOutput
	if out == nil {
		out = os.Stderr
	}
	out.Write(std.format(Red, "ERROR", msg, a...))
}

// --- Internal Logging Logic ---
func (l *Logger) log(level int, color, prefix string, msg interface{}, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Config.Flag < level {
		return
	}
	buffer := l.format(color, prefix, msg, a...)
	for _, out := range l.Config.Outputs {
		if out != nil {
			out.Write(buffer)
		}
	}
}

func formatContent(identifier string, msg interface{}, a ...interface{}) string {
	var contentBuffer bytes.Buffer
	if identifier != "" {
		fmt.Fprintf(&contentBuffer, "[%s] ", identifier)
	}

	if str, ok := msg.(string); ok && len(a) > 0 {
		fmt.Fprintf(&contentBuffer, str, a...)
	} else {
		fmt.Fprint(&contentBuffer, msg)
		for _, item := range a {
			fmt.Fprintf(&contentBuffer, " %v", item)
		}
	}
	return contentBuffer.String()
}

func (l *Logger) format(color, prefix string, msg interface{}, a ...interface{}) []byte {
	content := formatContent(l.Config.Identifier, msg, a...)
	header := fmt.Sprintf(" %s ", time.Now().Format("15:04:05.000"))

	var buffer bytes.Buffer
	if !l.Config.Color {
		fmt.Fprintf(&buffer, "[%s]%s%s\n", prefix, header, strings.TrimSpace(content))
		return buffer.Bytes()
	}

	buffer.WriteString(color)
	fmt.Fprintf(&buffer, "┌─[%s]%s\n", prefix, header)
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			fmt.Fprintf(&buffer, "│  %s\n", line)
		}
	}
	buffer.WriteString("└" + strings.Repeat("─", len(prefix)+len(header)+3))
	buffer.WriteString(Reset + "\n")
	return buffer.Bytes()
}
