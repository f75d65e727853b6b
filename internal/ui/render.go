package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"proxylog/internal/model"
)

func (m *Model) View() string {
	v := m.renderStream()
	if m.modalActive {
		// dim the background while keeping it visible
		dimmed := lipgloss.NewStyle().Faint(true).Render(v)
		v = overlay(dimmed, m.renderModal())
	}
	return v
}

func (m *Model) renderStream() string {
	tv := m.tbl.View()

	var line string
	switch m.inlineMode {
	case inlineFilter:
		line = m.input.View()
		if m.filterPreview != "" {
			line += "    " + m.styles.Help.Render(m.filterPreview)
		}
		line += m.styles.Help.Render("    [enter]=apply [esc]=cancel")
	case inlineSearch:
		line = m.input.View()
		if m.searchPreview != "" {
			line += "    " + m.styles.Help.Render(m.searchPreview)
		}
		line += m.styles.Help.Render("    [enter]=search [esc]=cancel")
	default:
		if f := m.mgr.Filter(); f != "" {
			line = fmt.Sprintf("filter: %s    [F]=clear", f)
		}
		if m.searchPattern != "" {
			if line != "" {
				line += "    "
			}
			line += fmt.Sprintf("search: %s (%d) [n/N]", m.searchPattern, len(m.matches))
		}
	}
	if line == "" && m.termWidth > 0 {
		line = strings.Repeat(" ", m.termWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, tv, line, m.renderStatus(), m.help.ShortHelpView(m.keymap.ShortHelp()))
}

func (m *Model) renderStatus() string {
	st := m.mgr.Stats()
	cur := 0
	if st.TotalFiltered > 0 {
		cur = m.tbl.Cursor() + 1
	}
	order := "oldest first"
	if st.Reversed {
		order = "newest first"
	}
	busy := ""
	if st.Fetching || m.netBusy || !st.Polled {
		busy = m.spin.View() + " "
	}
	status := fmt.Sprintf("%srow %d/%d  (%d total)  %s  cached:%d", busy, cur, st.TotalFiltered, st.Total, order, st.Cached)
	if m.lastMsg != "" {
		status += "  | " + m.lastMsg
	}
	out := m.styles.Status.Render(status)
	if m.lastErr != "" {
		out += "  " + m.styles.Error.Render(truncate("error: "+m.lastErr+" [R]=retry", 60))
	}
	if m.termWidth > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.termWidth).Render(out)
	}
	return out
}

func (m *Model) renderHelp() string {
	if len(m.helpItems) == 0 {
		m.helpItems = m.buildHelpItems()
	}
	if m.helpSel < 0 {
		m.helpSel = 0
	}
	if m.helpSel >= len(m.helpItems) {
		m.helpSel = len(m.helpItems) - 1
	}
	lines := []string{"Shortcuts:"}
	currentGroup := ""
	lineIndexOfSel := 0
	for i, it := range m.helpItems {
		if it.group != currentGroup {
			currentGroup = it.group
			lines = append(lines, "", currentGroup+":")
		}
		prefix := "  "
		if i == m.helpSel {
			prefix = "> "
			lineIndexOfSel = len(lines)
		}
		lines = append(lines, fmt.Sprintf("%s[%s] %s", prefix, keyLabel(it.key), it.text))
	}
	// keep the selection visible
	if m.modalVP.Height > 0 {
		top := m.modalVP.YOffset
		bottom := top + m.modalVP.Height - 1
		if lineIndexOfSel <= top {
			m.modalVP.YOffset = max(lineIndexOfSel-1, 0)
		} else if lineIndexOfSel >= bottom {
			m.modalVP.YOffset = max(lineIndexOfSel-m.modalVP.Height+2, 0)
		}
	}
	return m.styles.Help.Render(strings.Join(lines, "\n"))
}

func (m *Model) openModal(kind modalKind, title, body string) {
	m.modalActive = true
	m.modalKind = kind
	m.modalTitle = title
	m.modalBody = body
	m.resizeModal()
}

// renderDetail fills the detail modal for detailUUID from the current rows.
func (m *Model) renderDetail() {
	i, ok := m.mgr.VisualIndexOf(m.detailUUID)
	if !ok {
		m.modalTitle = "Message"
		m.modalBody = "This message is not under the current filter."
		m.modalVP.SetContent(m.modalBody)
		return
	}
	r, ok := m.mgr.Record(i)
	if !ok {
		return
	}
	m.modalTitle = m.detailTitle(r)
	var b strings.Builder
	b.WriteString(colorizeEntry(r.Index, m.styles))
	b.WriteString("\n\n")
	switch r.State {
	case model.StateReady:
		b.WriteString(highlightHTTP(r.RenderedContent, m.styles.ChromaStyle))
	case model.StateFailed:
		b.WriteString(m.styles.Failed.Render("failed to load: " + r.ErrorText + "  [R]=retry"))
	default:
		b.WriteString(m.styles.Pending.Render(m.spin.View() + " loading..."))
	}
	offset := m.modalVP.YOffset
	m.modalBody = b.String()
	m.modalVP.SetContent(m.modalBody)
	m.modalVP.SetYOffset(offset)
}

func (m *Model) detailTitle(r model.DisplayRecord) string {
	e := r.Index
	if e.IsRequest {
		return m.styles.Request.Render(e.SummaryText)
	}
	code := 0
	fmt.Sscanf(strings.TrimPrefix(e.SummaryText, "← "), "%d", &code)
	if st, ok := m.styles.Response[code/100]; ok {
		return st.Render(e.SummaryText)
	}
	return m.styles.PopupTitle.Render(e.SummaryText)
}

func (m *Model) resizeModal() {
	w := m.termWidth - 6
	h := m.termHeight - 6
	if w < 20 {
		w = 20
	}
	if h < 5 {
		h = 5
	}
	m.modalVP = viewport.New(w-4, h-4)
	if m.modalKind == modalHelp {
		m.modalVP.SetContent(m.renderHelp())
		return
	}
	m.modalVP.SetContent(m.modalBody)
}

func (m *Model) renderModal() string {
	var content string
	switch m.modalKind {
	case modalHelp:
		m.modalVP.SetContent(m.renderHelp())
		content = m.modalVP.View() + "\n[esc]=close  [enter]=run"
	case modalDetail:
		content = m.modalVP.View() + "\n[esc/enter]=close  [c]=copy  [p]=paired  [i]=explain"
	case modalLogs, modalExplain:
		content = m.modalVP.View() + "\n[esc/enter]=close  [c]=copy"
	default:
		content = m.modalVP.View() + "\n[esc/enter]=close"
	}
	boxW := m.termWidth - 6
	if boxW < 20 {
		boxW = 20
	}
	title := m.modalTitle
	if m.modalKind != modalDetail {
		title = m.styles.PopupTitle.Render(title)
	}
	body := m.styles.PopupBox.Width(boxW).Render(title + "\n" + content)
	return lipgloss.Place(m.termWidth, m.termHeight, lipgloss.Center, lipgloss.Center, body)
}
