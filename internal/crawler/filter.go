package crawler

import (
	"net/url"
	"path"
	"strings"
)

// skipExtensions lists path extensions that never yield crawlable HTML.
// Fetching binaries wastes the page budget and the politeness delay, so
// they are filtered before enqueueing rather than after download.
var skipExtensions = map[string]struct{}{
	// Images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".svg": {}, ".ico": {}, ".webp": {}, ".tiff": {},
	// Documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".odt": {}, ".rtf": {},
	// Archives
	".zip": {}, ".rar": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".7z": {},
	// Media
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".flv": {}, ".mkv": {}, ".wav": {}, ".ogg": {}, ".webm": {},
	// Executables and packages
	".exe": {}, ".dmg": {}, ".apk": {}, ".deb": {}, ".rpm": {}, ".msi": {},
	// Non-HTML text resources
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".rss": {}, ".atom": {},
}

// crawlable reports whether a parsed URL is worth fetching: an absolute
// http(s) URL whose path extension is not on the skip list.
func crawlable(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, skip := skipExtensions[ext]; skip {
		return false
	}
	return true
}

// normalizeURL canonicalizes a URL for deduplication.
//
// Design decision: We normalize before comparing because:
//  1. The same page reaches the frontier under several spellings
//     (fragment variants, case differences in scheme and host).
//  2. Fragments never change server-side content.
//  3. An empty path and "/" address the same resource.
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}

// normalizeHost lowercases a host and strips a leading "www." so that
// example.com and www.example.com count as the same site.
func normalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// sameDomain reports whether two hosts belong to the same site after
// normalization.
func sameDomain(a, b string) bool {
	return normalizeHost(a) == normalizeHost(b)
}
