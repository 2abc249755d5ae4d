package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFindCanonicalURL_OgURL(t *testing.T) {
	page := `<html><head>
		<meta property="og:title" content="Track"/>
		<meta property="og:url" content="https://music.yandex.ru/album/123/track/456"/>
	</head><body></body></html>`
	got := findCanonicalURL(strings.NewReader(page))
	if got != "https://music.yandex.ru/album/123/track/456" {
		t.Errorf("og:url not found, got %q", got)
	}
}

func TestFindCanonicalURL_CanonicalLinkFallback(t *testing.T) {
	page := `<html><head>
		<link rel="canonical" href="https://music.yandex.by/album/9/track/8">
	</head><body></body></html>`
	got := findCanonicalURL(strings.NewReader(page))
	if got != "https://music.yandex.by/album/9/track/8" {
		t.Errorf("canonical link not used, got %q", got)
	}
}

func TestFindCanonicalURL_RejectsNonTrackURLs(t *testing.T) {
	page := `<html><head>
		<meta property="og:url" content="https://example.com/album/1/track/2"/>
		<link rel="canonical" href="https://music.yandex.ru/artist/55">
	</head></html>`
	if got := findCanonicalURL(strings.NewReader(page)); got != "" {
		t.Errorf("non-track URLs must be rejected, got %q", got)
	}
}

func TestCanonicalTrackURL_FallsBackOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNormalizer("", time.Second)
	original := server.URL + "/track/456"
	if got := n.CanonicalTrackURL(context.Background(), original); got != original {
		t.Errorf("lookup failure should return the original URL, got %q", got)
	}
}

func TestCanonicalTrackURL_ResolvesFromPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:url" content="https://music.yandex.ru/album/321/track/654"/></head></html>`))
	}))
	defer server.Close()

	n := NewNormalizer("", time.Second)
	got := n.CanonicalTrackURL(context.Background(), server.URL+"/track/654")
	if got != "https://music.yandex.ru/album/321/track/654" {
		t.Errorf("expected canonical album URL, got %q", got)
	}
}
