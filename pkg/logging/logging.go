package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var logFile *os.File

// Setup configures the default logger. Level is one of debug, info, warn,
// error; anything else keeps the info default.
func Setup(level string) {
	log.SetReportTimestamp(true)

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ToFile redirects the default logger to a file, for runs where stdout is
// owned by another protocol (the MCP stdio server).
func ToFile(path string) error {
	var err error

	logFile, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	log.SetOutput(logFile)
	return nil
}

// Close closes the log file if ToFile opened one.
func Close() {
	if logFile != nil {
		logFile.Close()
	}
}
