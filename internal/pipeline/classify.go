package pipeline

import (
	"regexp"

	"github.com/SayonaraQ/downloadbot/internal/model"
)

// React only to supported domains; anything else is ignored.
var (
	instagramRe = regexp.MustCompile(`(?i)^\s*https?://(?:(?:www|m)\.)?instagram\.com/\S+\s*$`)
	tiktokRe    = regexp.MustCompile(`(?i)^\s*(?:https?://(?:www\.)?tiktok\.com/\S+|https?://vt\.tiktok\.com/\S+)\s*$`)
	youtubeRe   = regexp.MustCompile(`(?i)^\s*(?:https?://(?:(?:www|m)\.)?youtube\.com/\S+|https?://youtu\.be/\S+)\s*$`)
	vkRe        = regexp.MustCompile(`(?i)^\s*(?:https?://(?:www\.)?vk\.com/\S+|https?://vk\.cc/\S+|https?://vkvideo\.ru/\S+)\s*$`)
	yandexRe    = regexp.MustCompile(`(?i)https?://(?:(?:www|m)\.)?music\.yandex\.(?:ru|by|kz|ua)/`)

	// "Artist - Title", a few words on each side.
	musicQueryRe = regexp.MustCompile(`^[\p{L}\p{N}_]{2,}(\s+[\p{L}\p{N}_]{2,}){0,3}\s+-\s+[\p{L}\p{N}_]{2,}(\s+[\p{L}\p{N}_]{2,}){0,3}$`)
)

// Route is the handling path chosen for an inbound message.
type Route int

const (
	// RouteNone ignores the message.
	RouteNone Route = iota
	// RouteAudioURL is a one-shot streaming-audio fetch, no caching.
	RouteAudioURL
	// RouteMediaURL is the full cached video/media path.
	RouteMediaURL
	// RouteMusicQuery is a one-shot "Artist - Title" search, no caching.
	RouteMusicQuery
)

// Classify picks the route for a message. Rules are evaluated in fixed
// priority order; the first match wins.
func Classify(text string) (Route, model.Site) {
	switch {
	case yandexRe.MatchString(text):
		return RouteAudioURL, model.SiteYandex
	case instagramRe.MatchString(text):
		return RouteMediaURL, model.SiteInstagram
	case tiktokRe.MatchString(text):
		return RouteMediaURL, model.SiteTikTok
	case youtubeRe.MatchString(text):
		return RouteMediaURL, model.SiteYouTube
	case vkRe.MatchString(text):
		return RouteMediaURL, model.SiteVK
	case musicQueryRe.MatchString(text):
		return RouteMusicQuery, model.SiteUnknown
	default:
		return RouteNone, model.SiteUnknown
	}
}
