package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogFileCreatesWritableFile(t *testing.T) {
	dir := t.TempDir()

	f, err := SetupLogFile(dir, 3)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	defer f.Close()

	if !strings.HasPrefix(filepath.Base(f.Name()), "missiondeck-") {
		t.Errorf("file name = %q, want the missiondeck- prefix", f.Name())
	}
	if _, err := f.WriteString("log line\n"); err != nil {
		t.Errorf("writing to log file: %v", err)
	}
}

func TestSetupLogFileCleansUpOldLogs(t *testing.T) {
	dir := t.TempDir()

	// Timestamped names sort chronologically, so these are the oldest.
	old := []string{
		"missiondeck-2020-01-01T00-00-01.log",
		"missiondeck-2020-01-01T00-00-02.log",
		"missiondeck-2020-01-01T00-00-03.log",
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seeding old log: %v", err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	defer f.Close()

	remaining, err := filepath.Glob(filepath.Join(dir, "missiondeck-*.log"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("%d log files remain, want 2", len(remaining))
	}
	for _, name := range remaining {
		if filepath.Base(name) == old[0] || filepath.Base(name) == old[1] {
			t.Errorf("old log %s survived cleanup", name)
		}
	}
}

func TestSetupLogFileCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	f, err := SetupLogFile(dir, 3)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	f.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory missing: %v", err)
	}
}
