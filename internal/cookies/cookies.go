package cookies

import (
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/SayonaraQ/downloadbot/internal/model"
)

// Strategy is one authentication attempt configuration: either anonymous or
// backed by a Netscape cookie file.
type Strategy struct {
	Name       string
	CookieFile string
}

// Anonymous reports whether the strategy carries no credentials.
func (s Strategy) Anonymous() bool { return s.CookieFile == "" }

var listSeparators = regexp.MustCompile(`[\n,;]+`)

// ParseList flattens comma/semicolon/newline separated cookie-file values and
// keeps only files that exist. Missing files are dropped with a warning here,
// at load time, so acquisition never wastes an attempt on them.
func ParseList(values []string, log *logrus.Logger) []string {
	var out []string
	for _, value := range values {
		for _, chunk := range listSeparators.Split(value, -1) {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}
			if _, err := os.Stat(chunk); err != nil {
				log.WithField("file", chunk).Warn("cookie file not found, skipping")
				continue
			}
			out = append(out, chunk)
		}
	}
	return out
}

// Resolver maps a site classification to its ordered strategy list:
// an optional anonymous attempt first, then site-specific cookie files,
// then the global fallback list, duplicates removed in first-seen order.
type Resolver struct {
	perSite        map[model.Site][]string
	global         []string
	yandex         []string
	noCookiesFirst bool
}

// NewResolver parses the configured cookie-file lists once at startup.
func NewResolver(cfg model.CookiesConfig, noCookiesFirst bool, log *logrus.Logger) *Resolver {
	return &Resolver{
		perSite: map[model.Site][]string{
			model.SiteInstagram: ParseList(cfg.Instagram, log),
			model.SiteYouTube:   ParseList(cfg.YouTube, log),
			model.SiteTikTok:    ParseList(cfg.TikTok, log),
			model.SiteVK:        ParseList(cfg.VK, log),
		},
		global:         ParseList(cfg.Global, log),
		yandex:         ParseList(cfg.Yandex, log),
		noCookiesFirst: noCookiesFirst,
	}
}

// ForSite returns the ordered strategies for one site.
func (r *Resolver) ForSite(site model.Site) []Strategy {
	var strategies []Strategy
	if r.noCookiesFirst {
		strategies = append(strategies, Strategy{Name: "no-cookies"})
	}

	seen := make(map[string]struct{})
	for _, file := range append(append([]string{}, r.perSite[site]...), r.global...) {
		if _, dup := seen[file]; dup {
			continue
		}
		seen[file] = struct{}{}
		strategies = append(strategies, Strategy{Name: "cookies:" + file, CookieFile: file})
	}
	return strategies
}

// Yandex returns the cookie file for the Yandex Music audio path, if any.
func (r *Resolver) Yandex() string {
	if len(r.yandex) == 0 {
		return ""
	}
	return r.yandex[0]
}
