package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// AcquireMusic runs a one-shot "Artist - Title" search and downloads the
// first result as mp3. No caching; the caller owns workdir cleanup.
func (e *Engine) AcquireMusic(ctx context.Context, query, workdir string) (string, error) {
	if err := clearDir(workdir); err != nil {
		return "", err
	}
	opts := Options{
		ExtractAudio:   true,
		MaxFilesizeMB:  e.sizeMB,
		OutputTemplate: filepath.Join(workdir, "%(title)s.%(ext)s"),
	}
	paths, err := e.extractor.Download(ctx, []string{"ytsearch1:" + query}, opts)
	if err != nil {
		return "", err
	}
	return firstAudioFile(paths, workdir)
}

// AcquireAudio downloads a streaming-audio URL (Yandex Music) as mp3,
// applying the geo proxy, the Yandex cookie bundle, and best-effort
// canonicalization of short track URLs. No caching.
func (e *Engine) AcquireAudio(ctx context.Context, url, workdir string) (string, error) {
	if err := clearDir(workdir); err != nil {
		return "", err
	}

	// /track/<id> without /album/ is ambiguous for the extractor; resolve
	// the album-qualified form from the page itself when possible.
	if strings.Contains(url, "/track/") && !strings.Contains(url, "/album/") {
		url = e.normalizer.CanonicalTrackURL(ctx, url)
	}

	opts := Options{
		ExtractAudio:   true,
		MaxFilesizeMB:  e.sizeMB,
		OutputTemplate: filepath.Join(workdir, "%(title)s.%(ext)s"),
		CookieFile:     e.resolver.Yandex(),
		Proxy:          e.proxy,
		// Single track: don't pull the whole album. Album/playlist URLs
		// keep playlist expansion.
		NoPlaylist: strings.Contains(url, "/track/"),
		Headers: map[string]string{
			"Referer":    "https://music.yandex.ru/",
			"User-Agent": "Mozilla/5.0",
		},
	}
	paths, err := e.extractor.Download(ctx, []string{url}, opts)
	if err != nil {
		return "", err
	}
	return firstAudioFile(paths, workdir)
}

// firstAudioFile prefers the extractor-reported path; if reporting failed,
// falls back to the newest mp3 in the working directory.
func firstAudioFile(reported []string, workdir string) (string, error) {
	for _, p := range reported {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(workdir, "*.mp3"))
	newest := ""
	var newestMod int64
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", errors.New("no audio file produced")
	}
	return newest, nil
}
