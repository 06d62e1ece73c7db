package bitable

import "testing"

func TestCellText_Shapes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"plain string", "a cat on a skateboard", "a cat on a skateboard"},
		{"fragment array", []any{"a cat ", map[string]any{"text": "on a skateboard"}}, "a cat on a skateboard"},
		{"object with text", map[string]any{"text": "a cat on a skateboard"}, "a cat on a skateboard"},
		{"object without text", map[string]any{"link": "x"}, ""},
		{"number", float64(42), "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cellText(tc.in); got != tc.want {
				t.Fatalf("cellText(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCellLink_Shapes(t *testing.T) {
	const u = "https://cdn.example/a.mp4"
	if got := cellLink(u); got != u {
		t.Fatalf("bare string: got %q", got)
	}
	if got := cellLink(map[string]any{"link": u, "text": "查看视频"}); got != u {
		t.Fatalf("link pair: got %q", got)
	}
	if got := cellLink(map[string]any{"url": u}); got != u {
		t.Fatalf("url key: got %q", got)
	}
	if got := cellLink(nil); got != "" {
		t.Fatalf("nil: got %q", got)
	}
}

func TestCellAttachment_Shapes(t *testing.T) {
	if got := cellAttachment("tok123"); got != "tok123" {
		t.Fatalf("bare token: got %q", got)
	}
	if got := cellAttachment([]any{map[string]any{"file_token": "tok123"}}); got != "tok123" {
		t.Fatalf("attachment array token: got %q", got)
	}
	if got := cellAttachment([]any{map[string]any{"url": "https://x/img.png"}}); got != "https://x/img.png" {
		t.Fatalf("attachment array url: got %q", got)
	}
	if got := cellAttachment([]any{}); got != "" {
		t.Fatalf("empty array: got %q", got)
	}
	if got := cellAttachment(map[string]any{"file_token": "tok9"}); got != "tok9" {
		t.Fatalf("object token: got %q", got)
	}
}

func TestCellMillis(t *testing.T) {
	if got := cellMillis(float64(1700000000000)); got != 1700000000000 {
		t.Fatalf("got %d", got)
	}
	if got := cellMillis(nil); got != 0 {
		t.Fatalf("nil: got %d", got)
	}
}
