package extract

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/net/html"

	"github.com/SayonaraQ/downloadbot/internal/util"
)

// canonicalTrackRe matches the fully qualified album/track form the
// extractor handles reliably.
var canonicalTrackRe = regexp.MustCompile(`^https://music\.yandex\.(?:ru|by|kz|ua)/album/\d+/track/\d+$`)

// Normalizer resolves a short Yandex Music track URL to its canonical
// album-qualified form by reading the track page's og:url or canonical link.
type Normalizer struct {
	client *http.Client
}

// NewNormalizer builds a normalizer, routing through proxy when set.
func NewNormalizer(proxy string, timeout time.Duration) *Normalizer {
	return &Normalizer{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: util.NewProxyFunc(proxy)},
		},
	}
}

// CanonicalTrackURL returns the album-qualified URL for rawURL, or rawURL
// itself when the lookup fails in any way. Best effort only.
func (n *Normalizer) CanonicalTrackURL(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://music.yandex.ru/")

	resp, err := n.client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rawURL
	}

	if canonical := findCanonicalURL(io.LimitReader(resp.Body, 2<<20)); canonical != "" {
		return canonical
	}
	return rawURL
}

// findCanonicalURL scans the document for <meta property="og:url"> first,
// then <link rel="canonical">, and returns the first value matching the
// canonical track form.
func findCanonicalURL(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	var canonicalLink string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if canonicalLink != "" && canonicalTrackRe.MatchString(canonicalLink) {
				return canonicalLink
			}
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			attrs := make(map[string]string, len(token.Attr))
			for _, a := range token.Attr {
				attrs[a.Key] = a.Val
			}
			switch token.Data {
			case "meta":
				if attrs["property"] == "og:url" && canonicalTrackRe.MatchString(attrs["content"]) {
					return attrs["content"]
				}
			case "link":
				if attrs["rel"] == "canonical" && canonicalLink == "" {
					canonicalLink = attrs["href"]
				}
			}
		}
	}
}
