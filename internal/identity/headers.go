package identity

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/language"
)

// acceptVariants are realistic Accept header values. All advertise HTML
// first; the variation is in the image-format tail, which differs across
// real browser versions.
var acceptVariants = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
}

// acceptLanguageVariants are the locale preference lists a request can
// advertise. Built from language.Tag values rather than raw strings so an
// invalid locale tag cannot slip into the rotation: an Accept-Language
// value a real browser would never send is itself a fingerprint.
var acceptLanguageVariants = []struct {
	tags []language.Tag
	qs   []float64
}{
	{[]language.Tag{language.AmericanEnglish, language.English}, []float64{1.0, 0.9}},
	{[]language.Tag{language.AmericanEnglish, language.English}, []float64{1.0, 0.8}},
	{[]language.Tag{language.BritishEnglish, language.English}, []float64{1.0, 0.9}},
	{[]language.Tag{language.AmericanEnglish, language.English}, []float64{1.0, 0.5}},
}

// renderAcceptLanguage formats tags and quality values into an
// Accept-Language header value, e.g. "en-US,en;q=0.9".
// A quality of 1.0 is omitted, as browsers do.
func renderAcceptLanguage(tags []language.Tag, qs []float64) string {
	parts := make([]string, 0, len(tags))
	for i, tag := range tags {
		if qs[i] >= 1.0 {
			parts = append(parts, tag.String())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", tag.String(), qs[i]))
	}
	return strings.Join(parts, ",")
}

// defaultHeaders is the fixed header set used when randomization is off.
//
// Accept-Encoding is never set here: a manually set value disables the
// transport's transparent gzip decompression, and the body would reach the
// parser still compressed. The transport advertises gzip on its own.
func defaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    acceptVariants[0],
		"Accept-Language":           renderAcceptLanguage(acceptLanguageVariants[3].tags, acceptLanguageVariants[3].qs),
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

// randomHeaders generates a randomized but internally consistent header
// set. Values vary and optional headers appear probabilistically, matching
// the natural variance across real browser requests; no combination is
// produced that a browser could not emit.
func randomHeaders() map[string]string {
	lang := acceptLanguageVariants[rand.IntN(len(acceptLanguageVariants))]

	headers := map[string]string{
		"Accept":                    acceptVariants[rand.IntN(len(acceptVariants))],
		"Accept-Language":           renderAcceptLanguage(lang.tags, lang.qs),
		"DNT":                       []string{"1", "0"}[rand.IntN(2)],
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}

	if rand.Float64() < 0.3 {
		headers["Cache-Control"] = "max-age=0"
	}

	// Sec-Fetch-* travel together; a lone Sec-Fetch-Dest is a tell.
	if rand.Float64() < 0.2 {
		headers["Sec-Fetch-Dest"] = "document"
		headers["Sec-Fetch-Mode"] = "navigate"
		headers["Sec-Fetch-Site"] = []string{"none", "same-origin"}[rand.IntN(2)]
	}

	return headers
}
