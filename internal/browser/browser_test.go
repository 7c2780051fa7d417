package browser

import (
	"strings"
	"testing"
)

func TestExtractTextSkipsScriptAndStyle(t *testing.T) {
	src := `<html><head><style>body{color:red}</style></head>
<body><h1>SOL rallies</h1><script>var x = 1;</script><p>Volume up 12%.</p></body></html>`
	got := ExtractText(src)
	if !strings.Contains(got, "SOL rallies") || !strings.Contains(got, "Volume up 12%.") {
		t.Fatalf("text missing content: %q", got)
	}
	if strings.Contains(got, "color:red") || strings.Contains(got, "var x") {
		t.Fatalf("text leaked script/style: %q", got)
	}
}

func TestExtractTextCollapsesWhitespace(t *testing.T) {
	got := ExtractText("<p>a</p>\n\n\t<p>b</p>")
	if got != "a b" {
		t.Fatalf("got %q, want %q", got, "a b")
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Fatalf("clip changed short string: %q", got)
	}
	long := strings.Repeat("x", 50)
	got := clip(long, 10)
	if !strings.HasPrefix(got, "xxxxxxxxxx") || !strings.HasSuffix(got, "(truncated)") {
		t.Fatalf("clip wrong: %q", got)
	}
}
