package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/cookies"
	"github.com/SayonaraQ/downloadbot/internal/model"
	"github.com/SayonaraQ/downloadbot/internal/worker"
)

// Acquired is the result of a successful acquisition: the downloaded files
// in deterministic name order plus optional display metadata.
type Acquired struct {
	Title string
	Files []string
}

// Engine runs acquisitions through the strategy list for a site, enforcing
// the policy limits the collaborator does not: duration ceiling, item-count
// cap, and sub-item selection for story URLs.
type Engine struct {
	extractor Extractor
	resolver  *cookies.Resolver
	limiter   *worker.Limiter

	maxDuration time.Duration
	maxItems    int
	sizeMB      int
	videoFormat string
	mergeFormat string
	proxy       string
	normalizer  *Normalizer

	log *logrus.Logger
}

// NewEngine wires an acquisition engine.
func NewEngine(extractor Extractor, resolver *cookies.Resolver, limiter *worker.Limiter, limits model.LimitsConfig, dl model.DownloadConfig, log *logrus.Logger) *Engine {
	return &Engine{
		extractor:   extractor,
		resolver:    resolver,
		limiter:     limiter,
		maxDuration: limits.MaxDuration,
		maxItems:    limits.MaxItems,
		sizeMB:      limits.MaxSizeMB,
		videoFormat: dl.VideoFormat,
		mergeFormat: dl.MergeOutputFormat,
		proxy:       dl.Proxy,
		normalizer:  NewNormalizer(dl.Proxy, 15*time.Second),
		log:         log,
	}
}

var storyIDRe = regexp.MustCompile(`/stories/[^/]+/(\d+)`)

// storyID extracts the numeric story id from an Instagram
// /stories/<user>/<id> URL, or "".
func storyID(url string) string {
	m := storyIDRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// filterByID keeps only the multi-item entry matching wantedID. Best effort:
// a filter miss returns the info unchanged rather than failing the request.
// The bool reports whether the filter actually narrowed the collection.
func filterByID(info *Info, wantedID string) (*Info, bool) {
	if wantedID == "" || len(info.Entries) == 0 {
		return info, false
	}
	var filtered []*Info
	for _, e := range info.Entries {
		if e == nil {
			continue
		}
		if e.ID == wantedID || e.DisplayID == wantedID || e.MediaID == wantedID {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return info, false
	}
	out := *info
	out.Entries = filtered
	return &out, true
}

// checkDuration enforces the duration ceiling across every reported entry.
func (e *Engine) checkDuration(info *Info) error {
	if e.maxDuration <= 0 {
		return nil
	}
	for _, entry := range info.Flatten() {
		if entry.Duration > e.maxDuration.Seconds() {
			return &PolicyError{Message: fmt.Sprintf(
				"Video is too long: %d sec. Maximum: %d sec.",
				int(entry.Duration), int(e.maxDuration.Seconds()),
			)}
		}
	}
	return nil
}

// Acquire downloads the URL into workdir, trying each strategy for the site
// in order. The scratch dir is reset between attempts. A duration violation
// short-circuits the loop: no credentials change the content's length. Any
// other failure moves to the next strategy; after the last one the most
// recent error is returned inside an ExhaustedError.
func (e *Engine) Acquire(ctx context.Context, url string, site model.Site, workdir string) (*Acquired, error) {
	strategies := e.resolver.ForSite(site)
	if len(strategies) == 0 {
		strategies = []cookies.Strategy{{Name: "no-cookies"}}
	}

	var lastErr error
	for i, strat := range strategies {
		if err := clearDir(workdir); err != nil {
			e.log.WithError(err).Warn("failed to reset scratch dir")
		}
		if err := e.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}

		e.log.WithFields(logrus.Fields{
			"site":     site,
			"attempt":  fmt.Sprintf("%d/%d", i+1, len(strategies)),
			"strategy": strat.Name,
		}).Info("download attempt")

		result, err := e.attempt(ctx, url, site, strat, workdir)
		if err == nil {
			return result, nil
		}

		var policy *PolicyError
		if errors.As(err, &policy) {
			return nil, err
		}

		lastErr = err
		e.log.WithFields(logrus.Fields{
			"site":     site,
			"strategy": strat.Name,
		}).WithError(err).Warn("download attempt failed")
	}
	return nil, &ExhaustedError{Attempts: len(strategies), Err: lastErr}
}

func (e *Engine) attempt(ctx context.Context, url string, site model.Site, strat cookies.Strategy, workdir string) (*Acquired, error) {
	opts := Options{
		CookieFile:        strat.CookieFile,
		Format:            e.videoFormat,
		MergeOutputFormat: e.mergeFormat,
		MaxFilesizeMB:     e.sizeMB,
		OutputTemplate:    filepath.Join(workdir, "%(id)s_%(playlist_index)s.%(ext)s"),
	}
	if site == model.SiteInstagram {
		// Stories and carousels are playlist-shaped; cap how much we take.
		opts.PlaylistEnd = clamp(e.maxItems, 1, 50)
	} else {
		opts.NoPlaylist = true
	}

	info, err := e.extractor.Probe(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	selected := info
	filtered := false
	if site == model.SiteInstagram {
		if wantedID := storyID(url); wantedID != "" {
			selected, filtered = filterByID(info, wantedID)
		}
	}

	if err := e.checkDuration(selected); err != nil {
		return nil, err
	}

	// When the story filter narrowed the collection, download exactly those
	// entries; otherwise the original URL.
	var targets []string
	if filtered {
		for _, entry := range selected.Entries {
			if t := entry.WebpageURL; t != "" {
				targets = append(targets, t)
			} else if entry.URL != "" {
				targets = append(targets, entry.URL)
			}
		}
	}
	if len(targets) == 0 {
		targets = []string{url}
	}

	if _, err := e.extractor.Download(ctx, targets, opts); err != nil {
		return nil, err
	}

	files, err := collectFiles(workdir)
	if err != nil {
		return nil, err
	}
	if len(files) > e.maxItems && e.maxItems > 0 {
		files = files[:e.maxItems]
	}

	return &Acquired{Title: info.Title, Files: files}, nil
}

// collectFiles gathers the downloaded files from the working directory,
// skipping partial downloads and sidecar metadata, sorted by name so
// multi-item ordering is deterministic.
func collectFiles(workdir string) ([]string, error) {
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return nil, fmt.Errorf("read workdir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".description":
			continue
		}
		files = append(files, filepath.Join(workdir, name))
	}
	if len(files) == 0 {
		return nil, errors.New("no downloaded files found in working directory")
	}
	sort.Strings(files)
	return files, nil
}

func clearDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
