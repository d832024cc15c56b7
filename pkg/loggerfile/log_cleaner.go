package loggerfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meta-node-blockchain/benor/pkg/logger"
)

// LogCleaner removes trace files left over from a previous run.
type LogCleaner struct {
	logDir string
}

func NewLogCleaner(logDir string) *LogCleaner {
	return &LogCleaner{logDir: logDir}
}

// CleanLogs deletes everything below the log directory but keeps the directory itself.
func (lc *LogCleaner) CleanLogs() error {
	entries, err := os.ReadDir(lc.logDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read log dir %s: %w", lc.logDir, err)
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(lc.logDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	logger.Debug("Removed %d entries from %s", removed, lc.logDir)
	return nil
}
