// Package session owns the HTTP client context requests travel through.
//
// A Session bundles an identity (user agent, headers, proxy) with an
// http.Client whose transport, cookie jar, and connection pool belong to
// that identity alone. The Manager replaces the whole Session every
// rotation interval, or immediately on demand, so servers correlating
// connection reuse, cookies, and headers see each session as a distinct
// visitor.
package session
