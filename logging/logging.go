// Package logging sets up the logrus standard logger for the cdcboot tools.
package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "CDCBOOT_LOG_LEVEL"

// Configure sets the level and the output format of the standard logger.
func Configure(level string, json bool) error {
	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		level = env
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	if json {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// ParseLevel understands the logrus level names plus a few aliases.
func ParseLevel(raw string) (log.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return log.InfoLevel, nil
	case "diagnostics":
		return log.TraceLevel, nil
	case "disabled", "off", "none":
		return log.PanicLevel, nil
	}
	lvl, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel, errors.Wrap(err, "log level")
	}
	return lvl, nil
}
