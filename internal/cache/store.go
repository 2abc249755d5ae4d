package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/model"
)

const metaFilename = "meta.json"

// Store owns the media cache: one directory per key under the cache root,
// each holding a meta.json and the downloaded files, mirrored by an
// in-memory index. All entry lifecycle goes through the Store; other
// components hand mutated entries back via Write.
type Store struct {
	dir   string
	ttl   time.Duration
	index *gocache.Cache
	log   *logrus.Logger
}

// NewStore creates a store rooted at dir with the given entry TTL.
func NewStore(dir string, ttl time.Duration, log *logrus.Logger) *Store {
	return &Store{
		dir:   dir,
		ttl:   ttl,
		index: gocache.New(gocache.NoExpiration, 0),
		log:   log,
	}
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// EntryDir returns the storage directory for a key.
func (s *Store) EntryDir(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.EntryDir(key), metaFilename)
}

// Load scans the cache root and admits every non-expired entry into the
// in-memory index. Malformed or expired metadata is skipped, never fatal.
// Returns the number of entries loaded.
func (s *Store) Load() (int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cache dir: %w", err)
	}

	dirs, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	now := time.Now()
	loaded := 0
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entry, err := s.readEntry(d.Name())
		if err != nil {
			continue
		}
		if entry.Expired(now) {
			continue
		}
		s.index.Set(entry.Key, entry, gocache.NoExpiration)
		loaded++
	}
	return loaded, nil
}

func (s *Store) readEntry(key string) (*model.Entry, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return nil, err
	}
	var entry model.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	if entry.Key == "" {
		entry.Key = key
	}
	return &entry, nil
}

// Get looks up a key in the in-memory index. It does not check usability.
func (s *Store) Get(key string) (*model.Entry, bool) {
	v, found := s.index.Get(key)
	if !found {
		return nil, false
	}
	return v.(*model.Entry), true
}

// IsUsable reports whether an entry can satisfy a request right now:
// not expired, directory present, and either every item already carries a
// remote reference or every item's local file still exists. The first leg
// lets the cache serve purely by reference after local files are reclaimed.
func (s *Store) IsUsable(entry *model.Entry) bool {
	if entry == nil || len(entry.Items) == 0 {
		return false
	}
	if entry.Expired(time.Now()) {
		return false
	}
	dir := s.EntryDir(entry.Key)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return false
	}
	if entry.AllRemote() {
		return true
	}
	for _, it := range entry.Items {
		if it.LocalFilename == "" {
			return false
		}
		if _, err := os.Stat(filepath.Join(dir, it.LocalFilename)); err != nil {
			return false
		}
	}
	return true
}

// Write persists the entry's metadata and updates the index. Idempotent;
// safe to call after any mutation.
func (s *Store) Write(entry *model.Entry) error {
	if err := os.MkdirAll(s.EntryDir(entry.Key), 0o755); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(entry.Key), data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	s.index.Set(entry.Key, entry, gocache.NoExpiration)
	return nil
}

// Materialize creates a new entry from freshly downloaded files: each file is
// moved into the entry directory, classified by extension, and recorded in
// name order. Filename collisions get a timestamp suffix. An entry with zero
// items is never created.
func (s *Store) Materialize(key, url string, site model.Site, title string, files []string) (*model.Entry, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to cache for key %s", key)
	}
	dir := s.EntryDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create entry dir: %w", err)
	}

	now := time.Now()
	items := make([]*model.MediaItem, 0, len(files))
	for _, src := range files {
		name := filepath.Base(src)
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", name[:len(name)-len(ext)], now.Unix(), ext)
			target = filepath.Join(dir, name)
		}
		if err := os.Rename(src, target); err != nil {
			return nil, fmt.Errorf("move %s into cache: %w", src, err)
		}
		items = append(items, &model.MediaItem{
			Kind:          model.KindForFile(name),
			LocalFilename: name,
		})
	}

	entry := &model.Entry{
		Key:       key,
		URL:       url,
		Site:      site,
		Title:     title,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Items:     items,
	}
	if err := s.Write(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Purge drops the entry from the index and deletes its directory. Deletion
// errors are logged, not returned; purge never fails the caller's flow.
func (s *Store) Purge(key string) {
	s.index.Delete(key)
	if err := os.RemoveAll(s.EntryDir(key)); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("failed to remove cache entry dir")
	}
}

// SweepExpired purges every expired entry, both from the index and from any
// leftover directories on disk that the index does not know about (e.g. after
// a crash). Returns the number of entries removed.
func (s *Store) SweepExpired() int {
	now := time.Now()
	deleted := 0

	inIndex := make(map[string]struct{})
	for key, item := range s.index.Items() {
		inIndex[key] = struct{}{}
		entry := item.Object.(*model.Entry)
		if entry.Expired(now) {
			s.Purge(key)
			deleted++
		}
	}

	dirs, err := os.ReadDir(s.dir)
	if err != nil {
		return deleted
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, ok := inIndex[d.Name()]; ok {
			continue
		}
		entry, err := s.readEntry(d.Name())
		if err != nil {
			continue
		}
		if entry.Expired(now) {
			s.Purge(d.Name())
			deleted++
		}
	}
	return deleted
}

// StartSweeper runs SweepExpired on a fixed interval until stop is closed.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := s.SweepExpired(); n > 0 {
					s.log.WithField("deleted", n).Info("cache sweep removed expired entries")
				}
			}
		}
	}()
}
