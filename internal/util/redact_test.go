package util

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"mail bob@example.com now", "mail [redacted-email] now"},
		{"token=abcdef123456", "token=[redacted]"},
		{`{"password":"hunter2"}`, `{"password":"[redacted]"}`},
		{"Bearer eyJhbGciOiJIUzI1NiJ9.x.y", "Bearer [redacted]"},
		{"nothing here", "nothing here"},
	}
	for _, c := range cases {
		if got := RedactPII(c.in); got != c.want {
			t.Errorf("RedactPII(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRedactHTTPHeaders(t *testing.T) {
	msg := "GET /x HTTP/1.1\nAuthorization: Basic dXNlcjpwYXNz\nCookie: sid=1\nHost: api\n\nAuthorization: stays in body"
	got := RedactHTTP(msg)
	if strings.Contains(got, "dXNlcjpwYXNz") || strings.Contains(got, "sid=1") {
		t.Fatalf("header values leaked:\n%s", got)
	}
	if !strings.Contains(got, "Host: api") || !strings.HasSuffix(got, "Authorization: stays in body") {
		t.Fatalf("unexpected redaction:\n%s", got)
	}
}
