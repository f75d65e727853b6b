package render

import (
	"strings"
	"testing"

	"proxylog/internal/model"
)

func TestSummary(t *testing.T) {
	s, extra := Summary(model.Record{IsRequest: true, Method: "GET", Path: "/x"})
	if s != "→ GET /x" || len(extra) != 0 {
		t.Fatalf("request summary %q %v", s, extra)
	}
	s, extra = Summary(model.Record{Status: 404, Headers: map[string]string{"content-type": "text/plain"}, Body: "nope"})
	if s != "← 404 Not Found" {
		t.Fatalf("response summary %q", s)
	}
	if len(extra) != 2 || extra[0] != "text/plain" || extra[1] != "4 bytes" {
		t.Fatalf("extra %v", extra)
	}
}

func TestContentIndentsJSON(t *testing.T) {
	c := Content(model.Record{IsRequest: true, Method: "POST", Path: "/p", Headers: map[string]string{"B": "2", "A": "1"}, Body: `{"a":1}`})
	if !strings.HasPrefix(c, "POST /p HTTP/1.1\nA: 1\nB: 2\n") {
		t.Fatalf("start/headers:\n%s", c)
	}
	if !strings.HasSuffix(c, "{\n  \"a\": 1\n}") {
		t.Fatalf("body:\n%s", c)
	}
}

func TestBodyTruncates(t *testing.T) {
	b := Body(strings.Repeat("x", maxBody+10))
	if !strings.HasSuffix(b, "10 bytes truncated") {
		t.Fatalf("suffix %q", b[len(b)-30:])
	}
}
