package ingest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"proxylog/internal/model"
)

var (
	clients  = []string{"web", "mobile", "cli", "batch"}
	services = []string{"api", "auth", "billing", "search"}
	agents   = []string{
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"curl/8.2.1",
		"okhttp/4.12.0",
	}
)

// Traffic generates synthetic proxied exchanges: a request record followed by
// the response paired with it.
type Traffic struct {
	rnd *rand.Rand
	seq int64
	now func() time.Time
}

// NewTraffic returns a generator. A zero seed seeds from the clock.
func NewTraffic(seed int64) *Traffic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Traffic{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

// Next returns one request/response pair.
func (g *Traffic) Next() [2]model.Record {
	method, path, body := g.methodPath()
	client := g.pick(clients)
	service := g.pick(services)
	at := g.now().UTC()

	g.seq++
	req := model.Record{
		UUID:      uuid.NewString(),
		Sequence:  g.seq,
		IsRequest: true,
		Sender:    client,
		Recipient: service,
		Timestamp: at,
		Method:    method,
		Path:      path,
		Headers: map[string]string{
			"Host":         service + ".internal",
			"User-Agent":   g.pick(agents),
			"X-Request-Id": g.hex(16),
		},
		Body: body,
	}
	if body != "" {
		req.Headers["Content-Type"] = "application/json"
	}

	g.seq++
	status := g.status(method)
	respBody := g.responseBody(status, path)
	resp := model.Record{
		UUID:           uuid.NewString(),
		Sequence:       g.seq,
		PairedUUID:     req.UUID,
		PairedSequence: req.Sequence,
		Sender:         service,
		Recipient:      client,
		Timestamp:      at.Add(time.Duration(g.rnd.Intn(450)+5) * time.Millisecond),
		Path:           path,
		Status:         status,
		Headers: map[string]string{
			"Content-Type":   "application/json",
			"Content-Length": strconv.Itoa(len(respBody)),
			"X-Request-Id":   req.Headers["X-Request-Id"],
		},
		Body: respBody,
	}
	req.PairedUUID, req.PairedSequence = resp.UUID, resp.Sequence
	return [2]model.Record{req, resp}
}

func (g *Traffic) methodPath() (string, string, string) {
	id := g.rnd.Intn(1000) + 1
	switch g.rnd.Intn(6) {
	case 0:
		return http.MethodPost, "/api/v1/items", fmt.Sprintf(`{"name":"item-%d","qty":%d}`, id, g.rnd.Intn(10)+1)
	case 1:
		return http.MethodPut, fmt.Sprintf("/api/v1/items/%d", id), fmt.Sprintf(`{"qty":%d}`, g.rnd.Intn(10)+1)
	case 2:
		return http.MethodDelete, fmt.Sprintf("/api/v1/items/%d", id), ""
	case 3:
		return http.MethodPost, "/login", fmt.Sprintf(`{"user":"%s","password":"hunter2"}`, g.pick([]string{"alice", "bob", "carol"}))
	case 4:
		return http.MethodGet, "/health", ""
	default:
		return http.MethodGet, fmt.Sprintf("/api/v1/items/%d", id), ""
	}
}

// status is weighted towards success.
func (g *Traffic) status(method string) int {
	r := g.rnd.Float64()
	switch {
	case r < 0.75:
		if method == http.MethodPost {
			return http.StatusCreated
		}
		if method == http.MethodDelete {
			return http.StatusNoContent
		}
		return http.StatusOK
	case r < 0.85:
		return http.StatusNotFound
	case r < 0.92:
		return http.StatusTooManyRequests
	case r < 0.98:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (g *Traffic) responseBody(status int, path string) string {
	if status == http.StatusNoContent {
		return ""
	}
	var v any
	if status >= 400 {
		v = map[string]any{"error": http.StatusText(status), "path": path}
	} else {
		v = map[string]any{"ok": true, "path": path, "latency_ms": g.rnd.Intn(400) + 1}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (g *Traffic) pick(s []string) string { return s[g.rnd.Intn(len(s))] }

func (g *Traffic) hex(n int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[g.rnd.Intn(len(digits))]
	}
	return string(b)
}
