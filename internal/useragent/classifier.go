// Package useragent turns raw User-Agent strings into coarse client descriptions
// using ordered, first-match-wins rule tables.
package useragent

import (
	"strings"

	"github.com/you/projectsvc/domain"
)

// Unknown is the value of every field that could not be classified.
const Unknown = "Unknown"

// Info is the classification of one User-Agent string
type Info struct {
	BrowserName    string
	BrowserVersion string
	OSName         string
	DeviceName     string
	DeviceType     domain.DeviceType
}

// Classify never fails. Empty input yields Unknown for every field and
// domain.DeviceUnknown as the device type. Non-empty input that matches no
// browser, OS, device name or device type marker is DeviceUnknown too; a
// recognised client with no mobile or tablet marker is a desktop.
func Classify(ua string) Info {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return Info{
			BrowserName:    Unknown,
			BrowserVersion: Unknown,
			OSName:         Unknown,
			DeviceName:     Unknown,
			DeviceType:     domain.DeviceUnknown,
		}
	}

	name, version := browser(ua)
	info := Info{
		BrowserName:    name,
		BrowserVersion: version,
		OSName:         operatingSystem(ua),
		DeviceName:     deviceName(ua),
	}
	recognised := info.BrowserName != Unknown || info.OSName != Unknown || info.DeviceName != Unknown
	info.DeviceType = deviceType(ua, recognised)
	return info
}

func browser(ua string) (string, string) {
	for _, r := range browserRules {
		if !r.pattern.MatchString(ua) {
			continue
		}
		for _, v := range r.versions {
			if m := v.FindStringSubmatch(ua); len(m) > 1 && m[1] != "" {
				return r.name, m[1]
			}
		}
		return r.name, Unknown
	}
	return Unknown, Unknown
}

func operatingSystem(ua string) string {
	for _, r := range osRules {
		m := r.pattern.FindStringSubmatch(ua)
		if m == nil {
			continue
		}
		if r.version == nil || len(m) < 2 || m[1] == "" {
			return r.name
		}
		if v := r.version(m[1]); v != "" {
			return r.name + " " + v
		}
		return r.name
	}
	return Unknown
}

func deviceType(ua string, recognised bool) domain.DeviceType {
	for _, r := range deviceTypeRules {
		if r.pattern.MatchString(ua) && (r.exclude == nil || !r.exclude.MatchString(ua)) {
			return r.deviceType
		}
	}
	if !recognised {
		return domain.DeviceUnknown
	}
	return domain.DeviceDesktop
}

func deviceName(ua string) string {
	for _, r := range deviceNameRules {
		m := r.pattern.FindStringSubmatch(ua)
		if m == nil {
			continue
		}
		if r.model && len(m) > 1 {
			// Chrome's reduced UA reports the model as a bare "K".
			if model := strings.TrimSpace(m[1]); model != "" && model != "K" {
				return model
			}
		}
		return r.name
	}
	return Unknown
}
