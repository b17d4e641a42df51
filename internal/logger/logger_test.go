package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Config{Level: "warn", Output: &buf})
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("index", "x").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message written at warn level: %s", out)
	}
	if !strings.Contains(out, `"index":"x"`) || !strings.Contains(out, "shown") {
		t.Fatalf("warn message missing: %s", out)
	}
}

func TestNew_WritesFile(t *testing.T) {
	var buf bytes.Buffer
	p := filepath.Join(t.TempDir(), "grape.log")
	log, closer := New(Config{Level: "debug", Output: &buf, File: p})
	log.Debug().Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(b), "to file") || !strings.Contains(buf.String(), "to file") {
		t.Fatalf("message not in both outputs: file=%q console=%q", b, buf.String())
	}
}
