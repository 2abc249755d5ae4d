package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc routes all requests through the given proxy address. With no
// proxy configured it falls back to the standard environment variables.
func NewProxyFunc(proxy string) func(*http.Request) (*url.URL, error) {
	if proxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(*http.Request) (*url.URL, error) {
		return url.Parse(proxy)
	}
}
