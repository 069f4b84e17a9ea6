package config

// SiteConfig holds per-host request overrides from the configuration file.
// It lets operators supply credentials or extra headers for hosts that
// require them, without widening the CLI surface.
type SiteConfig struct {
	// Cookie is a raw cookie string sent with requests to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra headers merged into every request to this host.
	// They take precedence over randomized headers of the same name.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the .stealthcrawler configuration file.
type File struct {
	// Proxies lists proxy endpoint URLs added to the rotation pool,
	// merged after any --proxy flags.
	Proxies []string `yaml:"proxies,omitempty"`

	// UserAgents replaces the built-in user-agent rotation list when set.
	UserAgents []string `yaml:"userAgents,omitempty"`

	// Sites maps hostnames to per-host overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the merged configuration for a hostname:
// defaults first, then host-specific values on top.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := f.Defaults

	// Copy the headers map so merging never mutates Defaults.
	if len(f.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(f.Defaults.Headers))
		for k, v := range f.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := f.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}

	return result
}
