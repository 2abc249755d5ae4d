package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// YTDLP drives the yt-dlp binary. Retry counts per network operation are
// fixed here; the strategy loop above bounds total attempts.
type YTDLP struct {
	bin string
	log *logrus.Logger
}

// NewYTDLP creates an extractor using the yt-dlp binary on PATH.
func NewYTDLP(log *logrus.Logger) *YTDLP {
	return &YTDLP{bin: "yt-dlp", log: log}
}

// CheckEnvironment warns when the external tools the extractor depends on
// are missing from PATH. Not fatal.
func CheckEnvironment(log *logrus.Logger) {
	if _, err := exec.LookPath("yt-dlp"); err != nil {
		log.Warn("yt-dlp not found in PATH, downloads will fail")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Warn("ffmpeg not found in PATH, merging and audio conversion may not work")
	}
}

func (y *YTDLP) commonArgs(opts Options) []string {
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-check-certificates",
		"--restrict-filenames",
		"--retries", "10",
		"--fragment-retries", "10",
		"--extractor-retries", "3",
		"--concurrent-fragments", "4",
	}
	if opts.MaxFilesizeMB > 0 {
		args = append(args, "--max-filesize", strconv.Itoa(opts.MaxFilesizeMB)+"M")
	}
	if opts.OutputTemplate != "" {
		args = append(args, "--output", opts.OutputTemplate)
	}
	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy, "--geo-verification-proxy", opts.Proxy)
	}
	if opts.Format != "" {
		args = append(args, "--format", opts.Format)
	}
	if opts.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeOutputFormat)
	}
	if opts.NoPlaylist {
		args = append(args, "--no-playlist")
	} else if opts.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(opts.PlaylistEnd))
	}
	if opts.ExtractAudio {
		args = append(args, "--extract-audio", "--audio-format", "mp3", "--audio-quality", "192K")
	}
	for k, v := range opts.Headers {
		args = append(args, "--add-header", k+":"+v)
	}
	return args
}

// Probe resolves metadata for a target without downloading anything.
func (y *YTDLP) Probe(ctx context.Context, target string, opts Options) (*Info, error) {
	args := append(y.commonArgs(opts), "--dump-single-json", target)
	stdout, err := y.run(ctx, args)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("parse extractor metadata: %w", err)
	}
	return &info, nil
}

// Download transfers the targets into the configured output template and
// returns the final file paths yt-dlp reports after move/merge.
func (y *YTDLP) Download(ctx context.Context, targets []string, opts Options) ([]string, error) {
	args := append(y.commonArgs(opts), "--no-simulate", "--print", "after_move:filepath")
	args = append(args, targets...)
	stdout, err := y.run(ctx, args)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func (y *YTDLP) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil, &DownloadError{Output: lastLine(stderr.String()), Err: err}
		}
		return nil, fmt.Errorf("run %s: %w", y.bin, err)
	}
	return stdout.Bytes(), nil
}

// lastLine keeps the final stderr line, which holds yt-dlp's actual
// ERROR: message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
