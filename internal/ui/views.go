package ui

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/quick"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/mattn/go-runewidth"

	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

func overlay(base, overlay string) string {
	// Draw overlay on top of base by replacing lines where overlay has content.
	bLines := strings.Split(base, "\n")
	oLines := strings.Split(overlay, "\n")
	maxLen := len(bLines)
	if len(oLines) > maxLen {
		maxLen = len(oLines)
	}
	for len(bLines) < maxLen {
		bLines = append(bLines, "")
	}
	for len(oLines) < maxLen {
		oLines = append(oLines, "")
	}
	out := make([]string, maxLen)
	for i := 0; i < maxLen; i++ {
		// whitespace-only overlay lines are transparent
		if strings.TrimSpace(oLines[i]) != "" {
			out[i] = oLines[i]
		} else {
			out[i] = bLines[i]
		}
	}
	return strings.Join(out, "\n")
}

// copyToClipboard uses the system clipboard and falls back to OSC52, which
// works over SSH in many terminals.
func copyToClipboard(s string) {
	s = stripANSI(s)
	err := clipboard.WriteAll(s)
	if err == nil {
		return
	}
	logx.Debugf("clipboard: %v; using OSC52", err)
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	payload := fmt.Sprintf("\x1b]52;c;%s\x07", enc)
	// write to /dev/tty to avoid clobbering the app's stdout buffer
	if f, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
		defer f.Close()
		_, _ = f.WriteString(payload)
		return
	}
	fmt.Fprint(os.Stdout, payload)
}

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// highlightHTTP colors a rendered HTTP message. The plain text is returned if
// highlighting fails.
func highlightHTTP(s, style string) string {
	var b strings.Builder
	if err := quick.Highlight(&b, s, "http", "terminal256", style); err != nil {
		logx.Debugf("highlight: %v", err)
		return s
	}
	return b.String()
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

func padRight(s string, w int) string {
	return runewidth.FillRight(truncate(s, w), w)
}

// columns sizes the table for a terminal width. The summary column takes
// whatever the fixed columns leave.
func (m *Model) columns(width int) []table.Column {
	cols := []table.Column{
		{Title: "#", Width: 7},
		{Title: "time", Width: 12},
		{Title: "route", Width: 22},
		{Title: "", Width: 1},
		{Title: "summary", Width: 40},
	}
	fixed := 0
	for _, c := range cols[:len(cols)-1] {
		fixed += c.Width + 1 // cell padding
	}
	if rest := width - fixed - 1; rest > 10 {
		cols[len(cols)-1].Width = rest
	}
	return cols
}

// stateMark is the one-cell content state shown before the summary.
func stateMark(r model.DisplayRecord) string {
	switch r.State {
	case model.StateReady:
		return " "
	case model.StateFailed:
		return "!"
	default:
		return "·"
	}
}

func rowCells(r model.DisplayRecord, summaryWidth int) table.Row {
	e := r.Index
	ts := ""
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.Local().Format("15:04:05.000")
	}
	summary := e.SummaryText
	if len(e.ExtraSummaryLines) > 0 {
		summary += "  " + strings.Join(e.ExtraSummaryLines, " · ")
	}
	if r.State == model.StateFailed && r.ErrorText != "" {
		summary += "  [" + r.ErrorText + "]"
	}
	return table.Row{
		fmt.Sprint(e.SequenceNumber),
		ts,
		truncate(e.Sender+" → "+e.Recipient, 22),
		stateMark(r),
		truncate(summary, summaryWidth),
	}
}
