// Package util holds small helpers shared by the viewer packages.
package util

import (
	"regexp"
	"strings"
)

var (
	reEmail  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reToken  = regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|password|passwd)(["']?\s*[=:]\s*["']?)([^\s"'&,}]{4,})`)
	reBearer = regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9._~+/=-]{8,}`)
)

// sensitiveHeaders have their whole value replaced.
var sensitiveHeaders = []string{"authorization", "proxy-authorization", "cookie", "set-cookie", "x-api-key"}

// RedactPII masks e-mail addresses, credentials in key=value or JSON form,
// and bearer tokens.
func RedactPII(s string) string {
	s = reEmail.ReplaceAllString(s, "[redacted-email]")
	s = reBearer.ReplaceAllString(s, "$1 [redacted]")
	s = reToken.ReplaceAllString(s, "$1$2[redacted]")
	return s
}

// RedactHTTP redacts a rendered HTTP message: sensitive header values are
// dropped entirely, then RedactPII runs over the rest.
func RedactHTTP(msg string) string {
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		if l == "" {
			break // end of headers
		}
		name, _, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		for _, h := range sensitiveHeaders {
			if strings.EqualFold(strings.TrimSpace(name), h) {
				lines[i] = name + ": [redacted]"
				break
			}
		}
	}
	return RedactPII(strings.Join(lines, "\n"))
}
