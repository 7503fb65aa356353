package logging

import (
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{" WARN ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"trace", log.TraceLevel},
		{"diagnostics", log.TraceLevel},
		{"off", log.PanicLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("unknown level accepted")
	}
}

func TestConfigureEnvOverride(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(&log.TextFormatter{})

	os.Setenv(EnvLogLevel, "error")
	defer os.Unsetenv(EnvLogLevel)

	if err := Configure("debug", true); err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != log.ErrorLevel {
		t.Fatalf("level %v, want error from the environment", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatal("JSON formatter not installed")
	}
}
