package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a media file for delivery purposes.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// KindForFile derives the media kind from a file extension.
// Anything that is neither a known photo nor video format is sent as a document.
func KindForFile(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return KindPhoto
	case ".mp4", ".mkv", ".webm", ".mov":
		return KindVideo
	default:
		return KindDocument
	}
}

// Site identifies which supported source a URL belongs to.
type Site string

const (
	SiteInstagram Site = "instagram"
	SiteTikTok    Site = "tiktok"
	SiteYouTube   Site = "youtube"
	SiteVK        Site = "vk"
	SiteYandex    Site = "yandex"
	SiteUnknown   Site = "unknown"
)

// MediaItem is one deliverable unit inside a cache entry. An item is usable
// while it has either a local file in the entry directory or a remote
// reference previously assigned by the transport.
type MediaItem struct {
	Kind          Kind   `json:"kind"`
	LocalFilename string `json:"local_filename,omitempty"`
	RemoteRef     string `json:"tg_file_id,omitempty"`
}

// Entry is the persisted record of one successfully acquired request.
type Entry struct {
	Key       string       `json:"key"`
	URL       string       `json:"url"`
	Site      Site         `json:"site"`
	Title     string       `json:"title,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Items     []*MediaItem `json:"items"`
}

// Expired reports whether the entry's TTL has passed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// AllRemote reports whether every item carries a transport reference, in
// which case delivery needs no local files at all.
func (e *Entry) AllRemote() bool {
	if len(e.Items) == 0 {
		return false
	}
	for _, it := range e.Items {
		if it.RemoteRef == "" {
			return false
		}
	}
	return true
}
