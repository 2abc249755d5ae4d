// Package pipeline sequences the full handling of one inbound message:
// classification, admission control, cache lookup, acquisition, and delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/cache"
	"github.com/SayonaraQ/downloadbot/internal/deliver"
	"github.com/SayonaraQ/downloadbot/internal/extract"
	"github.com/SayonaraQ/downloadbot/internal/model"
	"github.com/SayonaraQ/downloadbot/internal/users"
	"github.com/SayonaraQ/downloadbot/internal/worker"
)

const fetchFailedMessage = "Could not download the media.\n" +
	"If this is private or age-restricted content, check your cookies (authorization) and try again."

const musicFailedMessage = "Could not download the music."

// Pipeline orchestrates the bot's request handling.
type Pipeline struct {
	store     *cache.Store
	flight    *worker.Flight
	engine    *extract.Engine
	deliverer *deliver.Engine
	transport deliver.Transport
	registry  *users.Registry
	tmpRoot   string
	log       *logrus.Logger
}

// New creates a pipeline with the given collaborators.
func New(store *cache.Store, flight *worker.Flight, engine *extract.Engine, deliverer *deliver.Engine, transport deliver.Transport, registry *users.Registry, tmpRoot string, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		flight:    flight,
		engine:    engine,
		deliverer: deliverer,
		transport: transport,
		registry:  registry,
		tmpRoot:   tmpRoot,
		log:       log,
	}
}

// HandleText processes one inbound text message for a chat. Unsupported
// messages are silently ignored.
func (p *Pipeline) HandleText(ctx context.Context, chat int64, text string) error {
	text = strings.TrimSpace(text)
	p.registry.Record(chat)

	// Opportunistic sweep, independent of the interval sweeper.
	p.store.SweepExpired()

	route, site := Classify(text)
	if route == RouteNone {
		return nil
	}

	// Admission under the global ceiling; excess requests queue here. The
	// ceiling covers every routed message, cache-hit deliveries included,
	// not only downloads.
	if err := p.flight.Acquire(ctx); err != nil {
		return err
	}
	defer p.flight.Release()

	switch route {
	case RouteAudioURL:
		return p.handleAudioURL(ctx, chat, text)
	case RouteMediaURL:
		return p.handleMediaURL(ctx, chat, text, site)
	case RouteMusicQuery:
		return p.handleMusicQuery(ctx, chat, text)
	}
	return nil
}

// handleMediaURL is the cached path: usable entry wins, otherwise exactly
// one concurrent acquisition per key runs and everyone waiting on the key
// gets the freshly populated entry. The whole path, cache-hit delivery
// included, runs under the key lock: delivery promotes remote references on
// the shared entry, so concurrent deliveries of the same entry must be
// serialized.
func (p *Pipeline) handleMediaURL(ctx context.Context, chat int64, url string, site model.Site) error {
	key := cache.Key(url)
	log := p.log.WithFields(logrus.Fields{"key": key, "site": site})

	unlock := p.flight.LockKey(key)
	defer unlock()

	if entry, ok := p.store.Get(key); ok && p.store.IsUsable(entry) {
		err := p.deliverer.Deliver(ctx, chat, entry)
		if err == nil {
			return nil
		}
		// A hit we cannot re-deliver is treated as a fresh miss.
		log.WithError(err).Warn("cache hit but delivery failed, re-acquiring")
		p.store.Purge(key)
	}

	workdir := filepath.Join(p.tmpRoot, "dl_"+key[:12])
	defer os.RemoveAll(workdir)

	acquired, err := p.engine.Acquire(ctx, url, site, workdir)
	if err != nil {
		var policy *extract.PolicyError
		if errors.As(err, &policy) {
			p.sendText(ctx, chat, policy.Message)
			return nil
		}
		log.WithError(err).Error("acquisition failed")
		p.sendText(ctx, chat, fetchFailedMessage)
		p.store.Purge(key)
		return err
	}

	entry, err := p.store.Materialize(key, url, site, acquired.Title, acquired.Files)
	if err != nil {
		log.WithError(err).Error("failed to cache acquired media")
		p.sendText(ctx, chat, fetchFailedMessage)
		p.store.Purge(key)
		return err
	}

	if err := p.deliverer.Deliver(ctx, chat, entry); err != nil {
		log.WithError(err).Error("delivery failed")
		p.store.Purge(key)
		return err
	}
	return nil
}

// handleAudioURL is the uncached streaming-audio path: fetch, send, delete.
func (p *Pipeline) handleAudioURL(ctx context.Context, chat int64, url string) error {
	workdir, err := os.MkdirTemp(p.tmpRoot, "audio_")
	if err != nil {
		return fmt.Errorf("create audio workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	path, err := p.engine.AcquireAudio(ctx, url, workdir)
	if err != nil {
		p.log.WithError(err).Error("audio download failed")
		p.sendText(ctx, chat, musicFailedMessage)
		return err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := p.transport.SendAudio(ctx, chat, path, title); err != nil {
		p.log.WithError(err).Error("audio send failed")
		p.sendText(ctx, chat, musicFailedMessage)
		return err
	}
	return nil
}

// handleMusicQuery is the uncached search path: search, send, delete.
func (p *Pipeline) handleMusicQuery(ctx context.Context, chat int64, query string) error {
	workdir, err := os.MkdirTemp(p.tmpRoot, "music_")
	if err != nil {
		return fmt.Errorf("create music workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	path, err := p.engine.AcquireMusic(ctx, query, workdir)
	if err != nil {
		p.log.WithError(err).Error("music search failed")
		p.sendText(ctx, chat, musicFailedMessage)
		return err
	}

	if err := p.transport.SendAudio(ctx, chat, path, query); err != nil {
		p.log.WithError(err).Error("audio send failed")
		p.sendText(ctx, chat, musicFailedMessage)
		return err
	}
	return nil
}

func (p *Pipeline) sendText(ctx context.Context, chat int64, text string) {
	if err := p.transport.SendText(ctx, chat, text); err != nil {
		p.log.WithError(err).Warn("failed to send text reply")
	}
}
