// Package useragent classifies raw user-agent strings into the coarse
// device/browser/OS labels stored on analytics events. Classification is a
// fixed ordered substring ruleset, applied once at write time.
package useragent

import "strings"

// Device types
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// UserAgent holds the labels derived from a raw user-agent string.
type UserAgent struct {
	UserAgent  string
	DeviceType string
	Browser    string
	OS         string
}

// Parse classifies a raw user-agent string. The same input always yields
// the same output.
func Parse(userAgent string) UserAgent {
	ua := strings.ToLower(userAgent)
	return UserAgent{
		UserAgent:  userAgent,
		DeviceType: parseDevice(ua),
		Browser:    parseBrowser(ua),
		OS:         parseOS(ua),
	}
}

// parseDevice checks tablet indicators first since tablet user agents often
// contain "mobile" too, then mobile indicators, then defaults to desktop.
func parseDevice(ua string) string {
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return DeviceTablet
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") ||
		strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod") {
		return DeviceMobile
	}
	return DeviceDesktop
}

// parseBrowser returns the first match in a fixed order. Chrome is tested
// before Safari, so a Chrome-on-iOS user agent that contains both
// substrings is classified as Chrome.
func parseBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "edge"):
		return "Edge"
	default:
		return "Other"
	}
}

// parseOS tests mobile platforms before their desktop look-alikes: Android
// user agents contain "linux", and iOS user agents contain "mac os".
func parseOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "iOS"
	case strings.Contains(ua, "mac"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Other"
	}
}
