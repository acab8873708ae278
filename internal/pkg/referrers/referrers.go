// Package referrers maps raw referrer strings to a (source, platform)
// pair: a machine key like "instagram" and a human label like "Instagram".
// Classification must be stable because funnel joins rely on classifying
// the same referrer identically across two independent logs.
package referrers

import (
	"embed"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Sentinel sources for traffic that matches no known platform.
const (
	SourceDirect = "direct"
	SourceOther  = "other"

	PlatformDirect = "direct access"
	PlatformOther  = "other"
)

//go:embed platforms.yml
var databaseFiles embed.FS

// Classification is the result of classifying a referrer.
type Classification struct {
	Source   string `json:"source"`
	Platform string `json:"platform"`
}

// PlatformEntry is one known platform in the embedded rule database.
type PlatformEntry struct {
	Source   string   `yaml:"source"`
	Platform string   `yaml:"platform"`
	Patterns []string `yaml:"patterns"`
}

var (
	platforms []PlatformEntry
	once      sync.Once
)

func getPlatforms() []PlatformEntry {
	once.Do(func() {
		data, err := databaseFiles.ReadFile("platforms.yml")
		if err != nil {
			fmt.Printf("Error reading platforms.yml: %v\n", err)
			return
		}
		if err := yaml.Unmarshal(data, &platforms); err != nil {
			fmt.Printf("Error parsing platforms.yml: %v\n", err)
		}
	})
	return platforms
}

// Classify maps a raw referrer string to its source and platform. It is a
// pure, total function: empty or "direct" referrers are direct traffic,
// otherwise the referrer is matched case-insensitively against the ordered
// platform list and the first match wins.
func Classify(referrer string) Classification {
	if referrer == "" || referrer == SourceDirect {
		return Classification{Source: SourceDirect, Platform: PlatformDirect}
	}

	lower := strings.ToLower(strings.TrimSpace(referrer))
	host := hostOf(lower)
	for _, entry := range getPlatforms() {
		for _, pattern := range entry.Patterns {
			if matchesPattern(lower, host, pattern) {
				return Classification{Source: entry.Source, Platform: entry.Platform}
			}
		}
	}

	return Classification{Source: SourceOther, Platform: PlatformOther}
}

// matchesPattern applies one pattern from the rule database. Dotted
// patterns are domain names and must match the referrer hostname at a
// label boundary, so "x.com" matches "x.com" and "www.x.com" but never
// "netflix.com". Word patterns keep plain substring semantics over the
// whole referrer.
func matchesPattern(lower, host, pattern string) bool {
	if strings.Contains(pattern, ".") {
		if host == "" {
			return strings.Contains(lower, pattern)
		}
		return host == pattern || strings.HasSuffix(host, "."+pattern)
	}
	return strings.Contains(lower, pattern)
}

// hostOf extracts the hostname from a referrer, tolerating a missing
// scheme. Referrers that carry no parseable host yield "".
func hostOf(lower string) string {
	parsed, err := url.Parse(lower)
	if err == nil && parsed.Host == "" && strings.Contains(lower, "/") {
		parsed, err = url.Parse("//" + lower)
	}
	if err != nil || parsed == nil {
		return ""
	}
	return parsed.Hostname()
}

// IsSocial reports whether a source key belongs to a social platform.
// Used by the insight engine's suggestion rule.
func IsSocial(source string) bool {
	switch source {
	case "instagram", "x", "tiktok", "youtube", "facebook", "note":
		return true
	}
	return false
}
