package identity

import (
	"math/rand/v2"
	"sync"
)

// defaultUserAgents is the built-in rotation list: current-generation
// browser strings across the platforms a real visitor population shows.
// Operators can replace the list via configuration.
var defaultUserAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",

	// Firefox on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/118.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/117.0",

	// Safari on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",

	// Chrome on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",

	// Chrome on Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",

	// Firefox on Linux
	"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0",

	// Edge on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36 Edg/118.0.2088.46",

	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Mobile Safari/537.36",
}

// userAgentRotator cycles through user-agent strings either randomly or
// sequentially. Safe for concurrent use.
type userAgentRotator struct {
	mu     sync.Mutex
	agents []string
	random bool
	next   int
}

// newUserAgentRotator builds a rotator over the given agents,
// falling back to the built-in list when agents is empty.
func newUserAgentRotator(agents []string, random bool) *userAgentRotator {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &userAgentRotator{
		agents: agents,
		random: random,
	}
}

// Next returns the next user-agent string per the rotation mode.
func (r *userAgentRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.random {
		return r.agents[rand.IntN(len(r.agents))]
	}

	ua := r.agents[r.next]
	r.next = (r.next + 1) % len(r.agents)
	return ua
}
