// Package logging configures the process-wide logrus logger
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup applies level ("debug", "info", ...) and format ("text" or "json")
// to the standard logger and writes to out
func Setup(out io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}

	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = &log.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &log.JSONFormatter{}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(formatter)
	return nil
}

// Component returns a logger tagged with the component name
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
