// Package version хранит данные сборки, подставляемые через -ldflags.
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки для health-ответа.
func GetVersion() string { return version }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// Fields: данные сборки для стартового лога.
func Fields() log.Fields {
	return log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
}
