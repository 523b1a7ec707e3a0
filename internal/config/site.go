package config

import (
	"maps"
	"strings"
)

// SiteConfig holds request overrides for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .onionleak configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are host names (e.g., "example.onion"); a scheme or trailing
	// slash is tolerated.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// site-specific entry over the defaults. The returned Headers map is a
// fresh copy and may be modified by the caller.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{Cookie: cf.Defaults.Cookie}
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}

	return result
}

// Lookup returns the cookie and headers for a host. Its signature matches
// crawler.SiteLookup.
func (cf *File) Lookup(host string) (string, map[string]string) {
	sc := cf.GetSiteConfig(host)
	return sc.Cookie, sc.Headers
}

// lookup finds the entry for host, comparing normalized keys.
func (cf *File) lookup(host string) (SiteConfig, bool) {
	if sc, ok := cf.Sites[host]; ok {
		return sc, true
	}
	want := normalizeHost(host)
	for key, sc := range cf.Sites {
		if normalizeHost(key) == want {
			return sc, true
		}
	}
	return SiteConfig{}, false
}

// normalizeHost lowercases s and strips a scheme and trailing slashes.
func normalizeHost(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return strings.TrimRight(s, "/")
}
