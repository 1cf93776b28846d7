package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	setupLogger("debug")
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	setupLogger("nonsense")
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected fallback to info, got %s", log.GetLevel())
	}
}
