package users

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRegistry_RecordOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	r := NewRegistry(path, testLogger())

	r.Record(100)
	r.Record(200)
	r.Record(100)

	count, err := r.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 distinct users, got %d", count)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "100\n200" {
		t.Errorf("unexpected file contents: %q", got)
	}
}

func TestRegistry_CountMissingFile(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "users.txt"), testLogger())
	count, err := r.Count()
	if err != nil {
		t.Fatalf("count on missing file: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 users, got %d", count)
	}
}
