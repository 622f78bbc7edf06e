package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLogger_ValidLevel(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	setupLogger("warn")

	if log.GetLevel() != log.WarnLevel {
		t.Fatalf("unexpected log level: %s", log.GetLevel())
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	setupLogger("everything")

	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("unexpected log level: %s", log.GetLevel())
	}
}
