// Package site serves the public site settings and the service catalog.
package site

import (
	"net"
	"net/http"
	"sort"
	"strings"

	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

const defaultSiteID = "agency"

// Config describes the branding of one public host
type Config struct {
	ID               string   `json:"id"`
	Hosts            []string `json:"hosts,omitempty"`
	Title            string   `json:"title,omitempty"`
	URL              string   `json:"url,omitempty"`
	TurnstileSiteKey string   `json:"turnstile_site_key,omitempty"`
	Default          bool     `json:"default,omitempty"`
}

// configSet stores resolved site configurations and host lookups.
type configSet struct {
	sites       []Config
	hostIndex   map[string]Config
	defaultSite Config
}

// loadConfigSet loads `settings.web.sites.*`, falling back to `settings.site.*`
func loadConfigSet(logger logSDK.Logger) configSet {
	defaultSite := defaultConfig()
	rawSites := gconfig.Shared.GetStringMap("settings.web.sites")
	if len(rawSites) == 0 {
		return buildConfigSet([]Config{defaultSite}, defaultSite)
	}

	keys := make([]string, 0, len(rawSites))
	for key := range rawSites {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sites := make([]Config, 0, len(keys))
	for _, key := range keys {
		site := loadConfig(logger, key, defaultSite)
		if site.ID == "" {
			continue
		}
		sites = append(sites, site)
	}
	if len(sites) == 0 {
		return buildConfigSet([]Config{defaultSite}, defaultSite)
	}

	return buildConfigSet(sites, chooseDefault(sites, defaultSite))
}

func buildConfigSet(sites []Config, defaultSite Config) configSet {
	hostIndex := make(map[string]Config)
	for _, site := range sites {
		for _, host := range site.Hosts {
			hostIndex[host] = site
		}
	}

	return configSet{
		sites:       sites,
		hostIndex:   hostIndex,
		defaultSite: defaultSite,
	}
}

func loadConfig(logger logSDK.Logger, key string, fallback Config) Config {
	baseKey := "settings.web.sites." + key
	hosts := normalizeHostList(gconfig.Shared.GetStringSlice(baseKey + ".hosts"))
	if len(hosts) == 0 {
		if host := normalizeHost(gconfig.Shared.GetString(baseKey + ".host")); host != "" {
			hosts = []string{host}
		}
	}

	site := Config{
		ID:               strings.TrimSpace(key),
		Hosts:            hosts,
		Title:            strings.TrimSpace(gconfig.Shared.GetString(baseKey + ".title")),
		URL:              strings.TrimSpace(gconfig.Shared.GetString(baseKey + ".url")),
		TurnstileSiteKey: strings.TrimSpace(gconfig.Shared.GetString(baseKey + ".turnstile_site_key")),
		Default:          gconfig.Shared.GetBool(baseKey + ".default"),
	}
	if site.Title == "" {
		site.Title = fallback.Title
	}
	if site.URL == "" {
		site.URL = fallback.URL
	}

	if site.ID == "" {
		logger.Debug("skip site config without id", zap.String("key", key))
	}

	return site
}

func chooseDefault(sites []Config, fallback Config) Config {
	for _, site := range sites {
		if site.Default {
			return site
		}
	}
	if len(sites) > 0 {
		return sites[0]
	}

	return fallback
}

func defaultConfig() Config {
	return Config{
		ID:      defaultSiteID,
		Title:   gconfig.Shared.GetString("settings.site.name"),
		URL:     gconfig.Shared.GetString("settings.site.url"),
		Default: true,
	}
}

// resolve returns the site matching the request host
func (s configSet) resolve(r *http.Request) Config {
	if site, ok := s.hostIndex[requestHost(r)]; ok {
		return site
	}

	return s.defaultSite
}

func requestHost(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		return normalizeHost(strings.Split(forwarded, ",")[0])
	}

	return normalizeHost(r.Host)
}

func normalizeHostList(hosts []string) []string {
	result := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if normalized := normalizeHost(host); normalized != "" {
			result = append(result, normalized)
		}
	}
	return result
}

// normalizeHost lowercases a hostname and removes port or trailing dot suffixes.
func normalizeHost(value string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), ".")
	if trimmed == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return strings.TrimSuffix(host, ".")
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return strings.TrimSuffix(strings.Trim(trimmed, "[]"), ".")
	}

	return trimmed
}
