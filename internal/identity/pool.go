package identity

// Identity is the complete presentation of one request: the User-Agent,
// the surrounding headers, and the proxy endpoint to route through.
// An empty Proxy means the request goes direct.
type Identity struct {
	// UserAgent is the User-Agent header value.
	UserAgent string

	// Headers are the remaining request headers.
	Headers map[string]string

	// Proxy is the proxy endpoint URL, or empty for a direct connection.
	Proxy string
}

// Pool produces Identities according to the enabled anti-detection
// features. One Pool serves the whole crawl; it is safe for concurrent use.
type Pool struct {
	rotator         *userAgentRotator
	monitor         *ProxyMonitor
	defaultAgent    string
	rotateUserAgent bool
	randomizeHeader bool
	rotateProxy     bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithUserAgentRotation enables user-agent rotation over the given list
// (built-in list when agents is empty). Random mode picks uniformly;
// otherwise the pool cycles sequentially.
func WithUserAgentRotation(agents []string, random bool) PoolOption {
	return func(p *Pool) {
		p.rotateUserAgent = true
		p.rotator = newUserAgentRotator(agents, random)
	}
}

// WithHeaderRandomization enables per-identity header randomization.
func WithHeaderRandomization() PoolOption {
	return func(p *Pool) {
		p.randomizeHeader = true
	}
}

// WithProxyRotation enables proxy rotation backed by the given monitor.
func WithProxyRotation(monitor *ProxyMonitor) PoolOption {
	return func(p *Pool) {
		p.rotateProxy = true
		p.monitor = monitor
	}
}

// NewPool creates an identity pool. With no options it always returns the
// fixed default agent with the fixed default headers and no proxy.
func NewPool(defaultAgent string, opts ...PoolOption) *Pool {
	p := &Pool{defaultAgent: defaultAgent}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Select assembles a fresh Identity.
// It fails only when proxy rotation is enabled and the pool is exhausted;
// that error must reach the operator, not be papered over.
func (p *Pool) Select() (Identity, error) {
	id := Identity{UserAgent: p.defaultAgent}

	if p.rotateUserAgent {
		id.UserAgent = p.rotator.Next()
	}

	if p.randomizeHeader {
		id.Headers = randomHeaders()
	} else {
		id.Headers = defaultHeaders()
	}

	if p.rotateProxy {
		proxy, err := p.monitor.Select()
		if err != nil {
			return Identity{}, err
		}
		id.Proxy = proxy
	}

	return id, nil
}

// Monitor returns the proxy monitor, or nil when rotation is disabled.
func (p *Pool) Monitor() *ProxyMonitor {
	return p.monitor
}
