package generate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iudd/soradeno/internal/config"
	"github.com/iudd/soradeno/internal/domain/model"
)

// urlPattern finds URL candidates inside prose. Greedy by design; Clean
// strips the punctuation it drags along.
var urlPattern = regexp.MustCompile(`(?:https?:)?//[^\s<>"'）】]+`)

// broadURLPattern is the last-resort pattern used for the final rescan of
// the whole accumulated text: it also accepts scheme-less paths that carry a
// video extension.
var broadURLPattern = regexp.MustCompile(`(?i)(?:https?://[^\s<>"'）】]+|[^\s<>"'）】]+\.(?:mp4|webm|mov|avi)[^\s<>"'）】]*)`)

var videoExts = []string{".mp4", ".webm", ".mov", ".avi"}

// Classifier assigns result URLs to slots using an ordered, configured rule
// list. Host and extension heuristics are deployment facts, so they arrive
// via config rather than being baked in.
type Classifier struct {
	rules   []config.ClassifyRule
	apiHost string // scheme://host used to resolve host-relative URLs
}

func NewClassifier(rules []config.ClassifyRule, apiBase string) *Classifier {
	host := ""
	if u, err := url.Parse(apiBase); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	return &Classifier{rules: rules, apiHost: host}
}

// Clean strips trailing punctuation picked up by greedy matching and
// resolves scheme-less URLs against the API host.
func (c *Classifier) Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, `)]}>.,;:'"）】》。，；`)
	if s == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return s
	case strings.HasPrefix(s, "//"):
		return "https:" + s
	case strings.HasPrefix(s, "/"):
		if c.apiHost != "" {
			return c.apiHost + s
		}
		return s
	default:
		return "https://" + s
	}
}

// Classify maps a cleaned URL onto a result slot via the first matching rule.
func (c *Classifier) Classify(u string) model.ResultSlot {
	lower := strings.ToLower(u)
	for _, r := range c.rules {
		if r.Host != "" && !strings.Contains(lower, strings.ToLower(r.Host)) {
			continue
		}
		if r.Ext == "video" && !hasVideoExt(lower) {
			continue
		}
		switch r.Slot {
		case "mirror":
			return model.SlotMirror
		case "watermark_free":
			return model.SlotWatermarkFree
		default:
			return model.SlotPrimary
		}
	}
	return model.SlotPrimary
}

// Scan extracts, cleans and classifies every URL candidate in text,
// recording each into rs with first-seen-wins semantics. Reports whether
// anything new was recorded.
func (c *Classifier) Scan(text string, rs *model.ResultSet) bool {
	return c.scanWith(urlPattern, text, rs)
}

// ScanBroad is the final-rescan variant with the loosest pattern.
func (c *Classifier) ScanBroad(text string, rs *model.ResultSet) bool {
	return c.scanWith(broadURLPattern, text, rs)
}

func (c *Classifier) scanWith(pat *regexp.Regexp, text string, rs *model.ResultSet) bool {
	found := false
	for _, m := range pat.FindAllString(text, -1) {
		u := c.Clean(m)
		if u == "" || !plausibleResultURL(u) {
			continue
		}
		if rs.SetIfAbsent(c.Classify(u), u) {
			found = true
		}
	}
	return found
}

// plausibleResultURL filters prose fragments the broad pattern may catch:
// a result URL either carries a media extension or lives under a host with
// a path.
func plausibleResultURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" || !strings.Contains(parsed.Host, ".") {
		return false
	}
	return parsed.Path != "" && parsed.Path != "/"
}

func hasVideoExt(u string) bool {
	path := u
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, ext := range videoExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
