package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/cache"
	"github.com/SayonaraQ/downloadbot/internal/cookies"
	"github.com/SayonaraQ/downloadbot/internal/deliver"
	"github.com/SayonaraQ/downloadbot/internal/extract"
	"github.com/SayonaraQ/downloadbot/internal/model"
	"github.com/SayonaraQ/downloadbot/internal/users"
	"github.com/SayonaraQ/downloadbot/internal/worker"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeExtractor counts collaborator calls and produces one video file.
type fakeExtractor struct {
	probeErr error
	duration float64

	probeCalls    int
	downloadCalls int
	lastTargets   []string
}

func (f *fakeExtractor) Probe(ctx context.Context, target string, opts extract.Options) (*extract.Info, error) {
	f.probeCalls++
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &extract.Info{ID: "vid1", Title: "clip", Duration: f.duration}, nil
}

func (f *fakeExtractor) Download(ctx context.Context, targets []string, opts extract.Options) ([]string, error) {
	f.downloadCalls++
	f.lastTargets = targets
	workdir := filepath.Dir(opts.OutputTemplate)
	name := "vid1_NA.mp4"
	if opts.ExtractAudio {
		name = "track.mp3"
	}
	path := filepath.Join(workdir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// fakeTransport records everything sent.
type fakeTransport struct {
	texts      []string
	audios     []string
	mediaCalls int
	groupCalls int
	refCounter int
}

func (f *fakeTransport) SendText(ctx context.Context, chat int64, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendAudio(ctx context.Context, chat int64, path, title string) error {
	f.audios = append(f.audios, title)
	return nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, chat int64, m deliver.Media) (string, error) {
	f.mediaCalls++
	f.refCounter++
	return fmt.Sprintf("ref-%d", f.refCounter), nil
}

func (f *fakeTransport) SendGroup(ctx context.Context, chat int64, items []deliver.Media) ([]string, error) {
	f.groupCalls++
	refs := make([]string, len(items))
	for i := range items {
		f.refCounter++
		refs[i] = fmt.Sprintf("ref-%d", f.refCounter)
	}
	return refs, nil
}

type testEnv struct {
	pipeline  *Pipeline
	store     *cache.Store
	extractor *fakeExtractor
	transport *fakeTransport
}

func newTestEnv(t *testing.T, ttl time.Duration) *testEnv {
	t.Helper()
	log := testLogger()
	store := cache.NewStore(t.TempDir(), ttl, log)
	extractor := &fakeExtractor{}
	transport := &fakeTransport{}

	resolver := cookies.NewResolver(model.CookiesConfig{}, true, log)
	limiter := worker.NewLimiter(1000, 100)
	limits := model.LimitsConfig{Concurrency: 5, MaxDuration: 600 * time.Second, MaxItems: 10, MaxSizeMB: 48}
	dl := model.DownloadConfig{VideoFormat: "bv*+ba/best", MergeOutputFormat: "mp4"}
	engine := extract.NewEngine(extractor, resolver, limiter, limits, dl, log)

	deliverer := deliver.NewEngine(transport, store, log)
	registry := users.NewRegistry(filepath.Join(t.TempDir(), "users.txt"), log)

	return &testEnv{
		pipeline:  New(store, worker.NewFlight(limits.Concurrency), engine, deliverer, transport, registry, t.TempDir(), log),
		store:     store,
		extractor: extractor,
		transport: transport,
	}
}

func TestHandleText_VideoCacheHit(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)
	ctx := context.Background()
	url := "https://vk.com/video-1_2"

	if err := env.pipeline.HandleText(ctx, 1, url); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if env.extractor.probeCalls != 1 || env.extractor.downloadCalls != 1 {
		t.Fatalf("expected one acquisition, got probe=%d download=%d",
			env.extractor.probeCalls, env.extractor.downloadCalls)
	}

	// Second request within TTL is served from cache without acquisition.
	if err := env.pipeline.HandleText(ctx, 2, url); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if env.extractor.probeCalls != 1 || env.extractor.downloadCalls != 1 {
		t.Errorf("cache hit must not re-acquire, got probe=%d download=%d",
			env.extractor.probeCalls, env.extractor.downloadCalls)
	}
	if env.transport.mediaCalls != 2 {
		t.Errorf("expected 2 deliveries, got %d", env.transport.mediaCalls)
	}
}

func TestHandleText_ConcurrentCacheHitsSerialized(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)
	ctx := context.Background()
	url := "https://vk.com/video-1_2"

	if err := env.pipeline.HandleText(ctx, 1, url); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Concurrent requests for the same cached entry all deliver the shared
	// entry; reference promotion mutates it, so the deliveries must be
	// serialized under the key lock.
	const requesters = 4
	var wg sync.WaitGroup
	errs := make(chan error, requesters)
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			errs <- env.pipeline.HandleText(ctx, chat, url)
		}(int64(i + 2))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent cache hit: %v", err)
		}
	}

	if env.extractor.downloadCalls != 1 {
		t.Errorf("cache hits must not re-acquire, got %d downloads", env.extractor.downloadCalls)
	}
	if env.transport.mediaCalls != 1+requesters {
		t.Errorf("expected %d deliveries, got %d", 1+requesters, env.transport.mediaCalls)
	}
}

func TestHandleText_PolicyRejection(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)
	env.extractor.duration = 900
	url := "https://vk.com/video-1_2"

	err := env.pipeline.HandleText(context.Background(), 1, url)
	if err != nil {
		t.Fatalf("policy violation is user-facing, not an error: %v", err)
	}
	if len(env.transport.texts) != 1 {
		t.Fatalf("expected 1 text reply, got %d", len(env.transport.texts))
	}
	if !strings.Contains(env.transport.texts[0], "900") || !strings.Contains(env.transport.texts[0], "600") {
		t.Errorf("policy message should state duration and ceiling: %q", env.transport.texts[0])
	}
	if env.extractor.downloadCalls != 0 {
		t.Errorf("nothing must be downloaded on a policy violation")
	}
	if _, found := env.store.Get(cache.Key(url)); found {
		t.Errorf("no entry may be retained on a policy violation")
	}
}

func TestHandleText_AcquisitionFailure(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)
	env.extractor.probeErr = errors.New("login required")

	err := env.pipeline.HandleText(context.Background(), 1, "https://vk.com/video-1_2")
	if err == nil {
		t.Fatalf("exhausted acquisition should be reported")
	}
	if len(env.transport.texts) != 1 || !strings.Contains(env.transport.texts[0], "cookies") {
		t.Errorf("requester should get the generic fetch-failed message, got %v", env.transport.texts)
	}
}

func TestHandleText_MusicQuery(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)

	if err := env.pipeline.HandleText(context.Background(), 1, "Daft Punk - Aerodynamic"); err != nil {
		t.Fatalf("music query: %v", err)
	}
	if env.extractor.downloadCalls != 1 {
		t.Fatalf("expected one search download, got %d", env.extractor.downloadCalls)
	}
	if len(env.extractor.lastTargets) != 1 || !strings.HasPrefix(env.extractor.lastTargets[0], "ytsearch1:") {
		t.Errorf("music queries go through search, got %v", env.extractor.lastTargets)
	}
	if len(env.transport.audios) != 1 || env.transport.audios[0] != "Daft Punk - Aerodynamic" {
		t.Errorf("audio should be sent titled by the query, got %v", env.transport.audios)
	}
	// One-shot path: nothing cached.
	if _, found := env.store.Get(cache.Key("Daft Punk - Aerodynamic")); found {
		t.Errorf("music queries must not populate the cache")
	}
}

func TestHandleText_AudioURL(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)

	if err := env.pipeline.HandleText(context.Background(), 1, "https://music.yandex.ru/album/1/track/2"); err != nil {
		t.Fatalf("audio url: %v", err)
	}
	if env.extractor.probeCalls != 0 {
		t.Errorf("audio path needs no probe, got %d", env.extractor.probeCalls)
	}
	if len(env.transport.audios) != 1 {
		t.Errorf("expected one audio sent, got %d", len(env.transport.audios))
	}
}

func TestHandleText_UnrelatedIgnored(t *testing.T) {
	env := newTestEnv(t, 300*time.Second)

	if err := env.pipeline.HandleText(context.Background(), 1, "what can you do?"); err != nil {
		t.Fatalf("unrelated text: %v", err)
	}
	if env.extractor.probeCalls+env.extractor.downloadCalls != 0 {
		t.Errorf("unrelated text must not reach the extractor")
	}
	if len(env.transport.texts)+env.transport.mediaCalls != 0 {
		t.Errorf("unrelated text must produce no replies")
	}
}

func TestHandleText_ExpiredEntryReacquired(t *testing.T) {
	env := newTestEnv(t, -time.Second)
	ctx := context.Background()
	url := "https://vk.com/video-1_2"

	if err := env.pipeline.HandleText(ctx, 1, url); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := env.pipeline.HandleText(ctx, 1, url); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if env.extractor.downloadCalls != 2 {
		t.Errorf("expired entry must be re-acquired, got %d downloads", env.extractor.downloadCalls)
	}
}
