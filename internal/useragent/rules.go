package useragent

import (
	"regexp"
	"strings"

	"github.com/you/projectsvc/domain"
)

// browserRule names a browser when pattern matches. The version is the first
// capture group of the first versions entry that matches.
type browserRule struct {
	name     string
	pattern  *regexp.Regexp
	versions []*regexp.Regexp
}

// osRule names an operating system. When version is set and the pattern's first
// capture group is non-empty, the rendered version is appended to the name.
type osRule struct {
	name    string
	pattern *regexp.Regexp
	version func(string) string
}

// deviceTypeRule classifies the device when pattern matches and exclude (if any)
// does not.
type deviceTypeRule struct {
	deviceType domain.DeviceType
	pattern    *regexp.Regexp
	exclude    *regexp.Regexp
}

// deviceNameRule names the hardware. When model is true the first capture group
// is used as the name if it carries a real model string.
type deviceNameRule struct {
	name    string
	pattern *regexp.Regexp
	model   bool
}

var re = regexp.MustCompile

// browserRules are evaluated in order. Chromium derivatives advertise Chrome and
// Safari tokens too, so they must precede Chrome; Chrome precedes Safari.
// Windows Phone 8.1 IE claims iPhone Safari, so IEMobile comes first.
var browserRules = []browserRule{
	{name: "Edge", pattern: re(`Edg(?:e|A|iOS)?/`), versions: []*regexp.Regexp{re(`Edg(?:e|A|iOS)?/([\d.]+)`)}},
	{name: "IE Mobile", pattern: re(`IEMobile/`), versions: []*regexp.Regexp{re(`IEMobile/([\d.]+)`)}},
	{name: "Opera", pattern: re(`OPR/|OPiOS/|Opera`), versions: []*regexp.Regexp{re(`(?:OPR|OPiOS)/([\d.]+)`), re(`Version/([\d.]+)`), re(`Opera[/ ]([\d.]+)`)}},
	{name: "Yandex", pattern: re(`YaBrowser/`), versions: []*regexp.Regexp{re(`YaBrowser/([\d.]+)`)}},
	{name: "Samsung Internet", pattern: re(`SamsungBrowser/`), versions: []*regexp.Regexp{re(`SamsungBrowser/([\d.]+)`)}},
	{name: "Firefox", pattern: re(`FxiOS/`), versions: []*regexp.Regexp{re(`FxiOS/([\d.]+)`)}},
	{name: "Firefox", pattern: re(`Firefox/`), versions: []*regexp.Regexp{re(`Firefox/([\d.]+)`)}},
	{name: "Chrome", pattern: re(`CriOS/`), versions: []*regexp.Regexp{re(`CriOS/([\d.]+)`)}},
	{name: "Chrome", pattern: re(`Chrome/`), versions: []*regexp.Regexp{re(`Chrome/([\d.]+)`)}},
	{name: "Safari", pattern: re(`Safari/`), versions: []*regexp.Regexp{re(`Version/([\d.]+)`), re(`Safari/([\d.]+)`)}},
	{name: "Internet Explorer", pattern: re(`MSIE |Trident/`), versions: []*regexp.Regexp{re(`MSIE ([\d.]+)`), re(`rv:([\d.]+)`)}},
}

// osRules: Windows Phone before Windows and Android, iOS before macOS, Android
// before Linux.
var osRules = []osRule{
	{name: "Windows Phone", pattern: re(`Windows Phone(?: OS)? ?([\d.]*)`), version: identity},
	{name: "Windows", pattern: re(`Windows NT ([\d.]+)`), version: windowsRelease},
	{name: "Windows", pattern: re(`Windows`)},
	{name: "iOS", pattern: re(`(?:iPhone|iPad|iPod)(?:[^)]*? OS (\d+(?:_\d+)*))?`), version: underscoreVersion},
	{name: "macOS", pattern: re(`(?:Macintosh.*?)?Mac OS X(?: (\d+(?:[_.]\d+)*))?|Macintosh`), version: underscoreVersion},
	{name: "Android", pattern: re(`Android ?([\d.]*)`), version: identity},
	{name: "Chrome OS", pattern: re(`CrOS`)},
	{name: "Linux", pattern: re(`Linux`)},
}

// deviceTypeRules: tablet markers first, then mobile markers. No match means
// desktop when anything else about the client was recognised. Desktop Windows
// advertises "Tablet PC 2.0" whenever pen input is installed.
var deviceTypeRules = []deviceTypeRule{
	{deviceType: domain.DeviceTablet, pattern: re(`(?i)ipad|tablet|kindle|silk|playbook`), exclude: re(`Windows NT`)},
	{deviceType: domain.DeviceTablet, pattern: re(`(?i)android`), exclude: re(`(?i)mobile`)},
	{deviceType: domain.DeviceMobile, pattern: re(`(?i)mobile|iphone|ipod|android|windows phone|blackberry|opera mini|iemobile`)},
}

// deviceNameRules: Windows Phone first, its IE also claims to be an iPhone.
var deviceNameRules = []deviceNameRule{
	{name: "Windows Phone", pattern: re(`Windows Phone`)},
	{name: "iPhone", pattern: re(`iPhone`)},
	{name: "iPad", pattern: re(`iPad`)},
	{name: "iPod", pattern: re(`iPod`)},
	{name: "Android device", pattern: re(`Android[^;)]*;\s*(?:[a-z]{2}(?:[-_][A-Za-z]{2})?;\s*)?([^;)]+?)(?:\s+Build/[^;)]*)?\)`), model: true},
	{name: "Android device", pattern: re(`Android`)},
	{name: "Kindle", pattern: re(`Kindle|Silk`)},
	{name: "Chromebook", pattern: re(`CrOS`)},
	{name: "Mac", pattern: re(`Macintosh`)},
	{name: "Windows PC", pattern: re(`Windows`)},
	{name: "Linux PC", pattern: re(`Linux|X11`)},
}

var windowsReleases = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
	"5.2":  "XP",
	"5.1":  "XP",
}

func identity(v string) string { return v }

func underscoreVersion(v string) string {
	return strings.ReplaceAll(v, "_", ".")
}

func windowsRelease(v string) string {
	return windowsReleases[v]
}
