package clicks

import (
	"strings"

	"github.com/jack/golang-shortlink-service/internal/model"
)

// Classifier buckets user agents by device, browser, OS and bot-ness using
// configured token lists. All methods are pure string matching so they stay
// deterministic and unit-testable; the lists themselves are configuration.
type Classifier struct {
	botTokens    []string
	mobileTokens []string
	tabletTokens []string
	tvTokens     []string
}

func NewClassifier(botTokens, mobileTokens, tabletTokens, tvTokens []string) *Classifier {
	return &Classifier{
		botTokens:    lowerAll(botTokens),
		mobileTokens: lowerAll(mobileTokens),
		tabletTokens: lowerAll(tabletTokens),
		tvTokens:     lowerAll(tvTokens),
	}
}

// IsBot reports whether the user agent carries a known bot token. False
// negatives are acceptable; the token list is kept specific to avoid false
// positives.
func (c *Classifier) IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, token := range c.botTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

// DeviceType classifies the user agent as tablet, tv, mobile or desktop.
// Tablets are checked before mobiles: Android tablets carry "android"
// without "mobile", iPads carry their own token.
func (c *Classifier) DeviceType(userAgent string) string {
	if userAgent == "" {
		return model.DeviceUnknown
	}
	ua := strings.ToLower(userAgent)

	for _, token := range c.tabletTokens {
		if strings.Contains(ua, token) {
			return model.DeviceTablet
		}
	}
	for _, token := range c.tvTokens {
		if strings.Contains(ua, token) {
			return model.DeviceTV
		}
	}
	for _, token := range c.mobileTokens {
		if strings.Contains(ua, token) {
			return model.DeviceMobile
		}
	}
	return model.DeviceDesktop
}

// browserTokens is ordered: Edge and Opera embed "chrome", Chrome embeds
// "safari", so more specific tokens come first.
var browserTokens = []struct {
	token string
	name  string
}{
	{"edg/", "Edge"},
	{"edge/", "Edge"},
	{"opr/", "Opera"},
	{"opera", "Opera"},
	{"samsungbrowser", "Samsung Internet"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"crios/", "Chrome"},
	{"safari/", "Safari"},
	{"msie", "Internet Explorer"},
	{"trident/", "Internet Explorer"},
}

// Browser returns a coarse browser family name, empty when unknown.
func (c *Classifier) Browser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, b := range browserTokens {
		if strings.Contains(ua, b.token) {
			return b.name
		}
	}
	return ""
}

var osTokens = []struct {
	token string
	name  string
}{
	{"windows phone", "Windows Phone"},
	{"windows", "Windows"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"ipod", "iOS"},
	{"mac os x", "macOS"},
	{"macintosh", "macOS"},
	{"cros", "ChromeOS"},
	{"linux", "Linux"},
}

// OS returns a coarse operating system name, empty when unknown.
func (c *Classifier) OS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, o := range osTokens {
		if strings.Contains(ua, o.token) {
			return o.name
		}
	}
	return ""
}

func lowerAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(t)
	}
	return out
}
