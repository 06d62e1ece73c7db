package bitable

import (
	"fmt"
	"strings"
)

// Bitable rich-text cells arrive as one of: a plain string, an array of
// fragments, or an object with text/link/url/file_token accessors. Each
// normalizer below flattens exactly one cell kind to a scalar; callers never
// branch on shapes themselves.

// cellText flattens a text cell. Fragment arrays are concatenated in order.
func cellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var b strings.Builder
		for _, item := range c {
			b.WriteString(cellText(item))
		}
		return b.String()
	case map[string]any:
		if t, ok := c["text"].(string); ok {
			return t
		}
		return ""
	default:
		return fmt.Sprintf("%v", c)
	}
}

// cellLink extracts a URL from a link cell ({link, text} pair or bare string).
func cellLink(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]any:
		if l, ok := c["link"].(string); ok {
			return l
		}
		if u, ok := c["url"].(string); ok {
			return u
		}
	}
	return ""
}

// cellAttachment extracts a URL or file token from an attachment cell. Only
// the first attachment matters for a reference image.
func cellAttachment(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		if len(c) == 0 {
			return ""
		}
		return cellAttachment(c[0])
	case map[string]any:
		if u, ok := c["url"].(string); ok {
			return u
		}
		if t, ok := c["file_token"].(string); ok {
			return t
		}
	}
	return ""
}

func cellBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// cellMillis reads a timestamp cell (Unix millis, arrives as float64).
func cellMillis(v any) int64 {
	switch c := v.(type) {
	case float64:
		return int64(c)
	case int64:
		return c
	}
	return 0
}
