// Package device derives human-readable labels for sessions from User-Agent strings.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns a label such as "Chrome on Intel Mac OS X 10_15_7".
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownDevice
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if strings.Contains(raw, "iPhone") && !strings.Contains(platform, "iPhone") {
		platform = "iPhone " + platform
	}

	browser = strings.TrimSpace(browser)
	platform = strings.TrimSpace(platform)
	if browser == "" {
		browser = "Unknown Browser"
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	label := browser + " on " + platform
	return strings.Join(strings.Fields(label), " ")
}
