package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/cache"
	"github.com/SayonaraQ/downloadbot/internal/model"
)

// Engine delivers cache entries. It mutates only the items' remote
// references and hands the entry back to the store for persistence; it never
// touches entry storage directly.
type Engine struct {
	transport Transport
	store     *cache.Store
	log       *logrus.Logger
}

// NewEngine wires a delivery engine.
func NewEngine(transport Transport, store *cache.Store, log *logrus.Logger) *Engine {
	return &Engine{transport: transport, store: store, log: log}
}

// Deliver sends every item of the entry to the chat. 2..10 photo/video items
// go as one grouped send first; a grouped failure degrades to individual
// sends in original order, where per-item failures are logged and dropped
// rather than aborting the delivery. Every reference learned from the
// transport is persisted immediately. Returns an error only when not a
// single item could be sent.
func (e *Engine) Deliver(ctx context.Context, chat int64, entry *model.Entry) error {
	if e.albumEligible(entry) {
		if done, err := e.deliverGroup(ctx, chat, entry); done {
			return err
		}
		// Grouped send failed; transport-side validation errors here are
		// common and non-deterministic. Degrade to per-item sends.
	}
	return e.deliverIndividually(ctx, chat, entry)
}

// albumEligible reports whether the entry qualifies for one grouped send:
// every item is a photo or video and the count is between 2 and 10.
func (e *Engine) albumEligible(entry *model.Entry) bool {
	if len(entry.Items) < 2 || len(entry.Items) > 10 {
		return false
	}
	for _, it := range entry.Items {
		if it.Kind != model.KindPhoto && it.Kind != model.KindVideo {
			return false
		}
	}
	return true
}

// deliverGroup attempts the grouped send. The group is composed from remote
// references only when every item has one; otherwise it streams the local
// file for every item in the group. The bool reports whether the delivery
// is complete (so the caller must not fall back).
func (e *Engine) deliverGroup(ctx context.Context, chat int64, entry *model.Entry) (bool, error) {
	dir := e.store.EntryDir(entry.Key)
	items := make([]Media, 0, len(entry.Items))
	for i, it := range entry.Items {
		var src Source
		if entry.AllRemote() {
			src = RemoteRef{ID: it.RemoteRef}
		} else {
			if it.LocalFilename == "" {
				return false, nil
			}
			src = LocalFile{Path: filepath.Join(dir, it.LocalFilename)}
		}
		items = append(items, Media{
			Kind:    it.Kind,
			Source:  src,
			Caption: e.caption(entry, i),
		})
	}

	refs, err := e.transport.SendGroup(ctx, chat, items)
	if err != nil {
		e.log.WithField("key", entry.Key).WithError(err).Warn("grouped send failed, sending items individually")
		return false, nil
	}

	updated := false
	for i, ref := range refs {
		if i < len(entry.Items) && ref != "" && entry.Items[i].RemoteRef != ref {
			entry.Items[i].RemoteRef = ref
			updated = true
		}
	}
	if updated {
		if err := e.store.Write(entry); err != nil {
			e.log.WithField("key", entry.Key).WithError(err).Warn("failed to persist remote references")
		}
	}
	return true, nil
}

func (e *Engine) deliverIndividually(ctx context.Context, chat int64, entry *model.Entry) error {
	dir := e.store.EntryDir(entry.Key)
	sent := 0
	for i, it := range entry.Items {
		media := Media{Kind: it.Kind, Caption: e.caption(entry, i)}
		switch {
		case it.RemoteRef != "":
			media.Source = RemoteRef{ID: it.RemoteRef}
		case it.LocalFilename != "":
			path := filepath.Join(dir, it.LocalFilename)
			if _, err := os.Stat(path); err != nil {
				e.log.WithFields(logrus.Fields{"key": entry.Key, "item": i}).Warn("media file missing, item dropped")
				continue
			}
			media.Source = LocalFile{Path: path}
		default:
			e.log.WithFields(logrus.Fields{"key": entry.Key, "item": i}).Warn("item has neither file nor reference, dropped")
			continue
		}

		ref, err := e.transport.SendMedia(ctx, chat, media)
		if err != nil {
			e.log.WithFields(logrus.Fields{"key": entry.Key, "item": i}).WithError(err).Warn("failed to send item")
			continue
		}
		sent++
		if ref != "" && it.RemoteRef != ref {
			it.RemoteRef = ref
			if err := e.store.Write(entry); err != nil {
				e.log.WithField("key", entry.Key).WithError(err).Warn("failed to persist remote reference")
			}
		}
	}

	if sent == 0 {
		return fmt.Errorf("failed to deliver any of %d items for key %s", len(entry.Items), entry.Key)
	}
	return nil
}

// caption returns the entry title for the first item only.
func (e *Engine) caption(entry *model.Entry, i int) string {
	if i == 0 {
		return entry.Title
	}
	return ""
}
