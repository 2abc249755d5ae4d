// Package users keeps the flat registry of chats that ever talked to the
// bot: an append-only newline-delimited file of distinct chat ids.
package users

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry records chat ids in a flat file. The file is read fully on each
// operation, which is acceptable at the expected scale.
type Registry struct {
	path string
	mu   sync.Mutex
	log  *logrus.Logger
}

// NewRegistry creates a registry backed by the file at path.
func NewRegistry(path string, log *logrus.Logger) *Registry {
	return &Registry{path: path, log: log}
}

// Record adds the chat id to the registry if not already present. Failures
// are logged, never surfaced: losing a registry line must not fail a request.
func (r *Registry) Record(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("%d", chatID)
	existing, err := r.readAll()
	if err != nil && !os.IsNotExist(err) {
		r.log.WithError(err).Error("failed to read user registry")
		return
	}
	for _, line := range existing {
		if line == id {
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.log.WithError(err).Error("failed to create data dir")
		return
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.log.WithError(err).Error("failed to open user registry")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(id + "\n"); err != nil {
		r.log.WithError(err).Error("failed to append user")
	}
}

// Count returns the number of registered chats.
func (r *Registry) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readAll()
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

func (r *Registry) readAll() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
