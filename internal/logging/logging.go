package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds "<name>.<yyyymmdd_hhmmss>.log" under logsDir.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
