package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"tracecore/internal/metrics"
)

func TestRegisteredCommands(t *testing.T) {
	registerCommands()
	want := map[string]bool{
		"build": false, "validate": false, "upload": false,
		"sbol": false, "plate": false, "archive": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestOpenClientRequiresURL(t *testing.T) {
	viper.Set("lims-url", "")
	defer viper.Set("lims-url", nil)
	if _, _, err := openClient(nil, metrics.Nop{}); err == nil {
		t.Fatalf("expected error without inventory URL")
	}
}

func TestOpenClientWrapsCache(t *testing.T) {
	viper.Set("lims-url", "http://lims.example.org")
	viper.Set("cache", filepath.Join(t.TempDir(), "cache.db"))
	defer func() {
		viper.Set("lims-url", nil)
		viper.Set("cache", nil)
	}()
	client, closeClient, err := openClient(nil, metrics.Nop{})
	if err != nil {
		t.Fatalf("openClient: %v", err)
	}
	if client == nil {
		t.Fatalf("nil client")
	}
	if err := closeClient(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOutputWriter(t *testing.T) {
	w, closeOutput, err := outputWriter("")
	if err != nil {
		t.Fatalf("outputWriter stdout: %v", err)
	}
	if w != os.Stdout {
		t.Fatalf("expected stdout for empty path")
	}
	if err := closeOutput(); err != nil {
		t.Fatalf("close stdout writer: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	w, closeOutput, err = outputWriter(path)
	if err != nil {
		t.Fatalf("outputWriter file: %v", err)
	}
	if _, err := w.WriteString("{}"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := closeOutput(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "{}" {
		t.Fatalf("read back: %q %v", data, err)
	}
}

func TestNewRecorderDefaultsToNop(t *testing.T) {
	viper.Set("metrics-listen", "")
	rec, stop := newRecorder()
	defer stop()
	if _, ok := rec.(metrics.Nop); !ok {
		t.Fatalf("expected Nop recorder, got %T", rec)
	}
}
