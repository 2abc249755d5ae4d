// Package extract implements media acquisition on top of the external
// yt-dlp collaborator: metadata probing, downloading under policy limits,
// and the multi-strategy credential fallback loop.
package extract

import (
	"context"
)

// Options configures one extractor invocation.
type Options struct {
	CookieFile        string
	Proxy             string
	Format            string
	MergeOutputFormat string
	MaxFilesizeMB     int
	OutputTemplate    string
	NoPlaylist        bool
	PlaylistEnd       int
	ExtractAudio      bool
	Headers           map[string]string
}

// Info is the structured metadata reported by the extractor. Multi-item
// resources (stories, carousels, playlists) carry nested Entries.
type Info struct {
	ID         string  `json:"id"`
	DisplayID  string  `json:"display_id"`
	MediaID    string  `json:"media_id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
	Entries    []*Info `json:"entries"`
}

// Flatten yields the info itself for a single resource, or its non-nil
// entries for a multi-item resource.
func (i *Info) Flatten() []*Info {
	if len(i.Entries) == 0 {
		return []*Info{i}
	}
	out := make([]*Info, 0, len(i.Entries))
	for _, e := range i.Entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Extractor is the boundary to the external extraction collaborator. Probe
// resolves a URL or search expression into metadata without downloading;
// Download performs the actual transfer and returns the final file paths it
// reports.
type Extractor interface {
	Probe(ctx context.Context, target string, opts Options) (*Info, error)
	Download(ctx context.Context, targets []string, opts Options) ([]string, error)
}
