package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"proxylog/internal/ai"
	"proxylog/internal/export"
	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

func (m *Model) buildHelpItems() []helpItem {
	km := m.keymap
	return []helpItem{
		{group: "Navigation", text: "Previous row", key: tea.Key{Type: tea.KeyUp}},
		{group: "Navigation", text: "Next row", key: tea.Key{Type: tea.KeyDown}},
		{group: "Navigation", text: "Page up", key: tea.Key{Type: tea.KeyPgUp}},
		{group: "Navigation", text: "Page down", key: tea.Key{Type: tea.KeyPgDown}},
		{group: "Navigation", text: "Go to top", key: km.Top},
		{group: "Navigation", text: "Go to bottom", key: km.Bottom},
		{group: "Navigation", text: "Jump to paired message", key: km.Paired},

		{group: "Search", text: "Search", key: km.Search},
		{group: "Search", text: "Search next", key: km.SearchNext},
		{group: "Search", text: "Search prev", key: km.SearchPrev},

		{group: "Filter", text: "Edit filter", key: km.Filter},
		{group: "Filter", text: "Clear filter", key: km.ClearFilter},
		{group: "Filter", text: "Reverse order", key: km.Reverse},

		{group: "Views", text: "Message details", key: km.Detail},
		{group: "Views", text: "Application logs", key: km.AppLogs},

		{group: "Actions", text: "Copy message", key: km.CopyContent},
		{group: "Actions", text: "Retry failed rows", key: km.Retry},
		{group: "Actions", text: "Export index as CSV", key: km.ExportCSV},
		{group: "Actions", text: "Download log (gzip)", key: km.ExportGz},

		{group: "AI", text: "Explain exchange (OpenAI)", key: km.Explain},

		{group: "Control", text: "Help", key: km.Help},
		{group: "Control", text: "Quit", key: km.Quit},
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		_, cmd := m.Update(msg.msg)
		return m, tea.Batch(cmd, m.listen())
	case tea.WindowSizeMsg:
		m.termWidth, m.termHeight = msg.Width, msg.Height
		// header, filter line, status, help footer
		h := msg.Height - 4
		if h < 1 {
			h = 1
		}
		m.tbl.SetHeight(h)
		m.tbl.SetWidth(msg.Width)
		m.tbl.SetColumns(m.columns(msg.Width))
		m.refreshRows()
		if m.modalActive {
			m.resizeModal()
		}
		return m, nil
	case changesMsg:
		m.refreshRows()
		if m.modalActive && m.modalKind == modalDetail {
			m.renderDetail()
		}
		return m, nil
	case scrollMsg:
		if msg.row >= len(m.rows) {
			m.refreshRows()
		}
		m.setCursor(msg.row)
		return m, nil
	case errorMsg:
		m.errCount++
		if msg.code > 0 {
			m.lastErr = fmt.Sprintf("%d: %s", msg.code, msg.text)
		} else {
			m.lastErr = msg.text
		}
		return m, nil
	case filterPreviewMsg:
		if m.inlineMode == inlineFilter && strings.TrimSpace(m.input.Value()) == msg.expr {
			switch {
			case msg.err != nil:
				m.filterPreview = "test failed: " + msg.err.Error()
			case msg.res.ErrorMessage != "":
				m.filterPreview = msg.res.ErrorMessage
			default:
				m.filterPreview = fmt.Sprintf("matches %d of %d", msg.res.Matched, msg.res.Total)
			}
		}
		return m, nil
	case searchPreviewMsg:
		if m.inlineMode == inlineSearch && strings.TrimSpace(m.input.Value()) == msg.query {
			switch {
			case msg.err != nil:
				m.searchPreview = "search failed: " + msg.err.Error()
			case msg.res.ErrorMessage != "":
				m.searchPreview = msg.res.ErrorMessage
			default:
				m.searchPreview = fmt.Sprintf("%d matches", len(msg.res.Matches))
			}
		}
		return m, nil
	case searchDoneMsg:
		m.netBusy = false
		if msg.err != nil {
			m.lastMsg = "search failed: " + msg.err.Error()
			return m, nil
		}
		if msg.res.ErrorMessage != "" {
			m.lastMsg = "search: " + msg.res.ErrorMessage
			return m, nil
		}
		m.searchPattern = msg.query
		m.matches = msg.res.Matches
		m.lastMsg = fmt.Sprintf("%d matches for %q", len(m.matches), msg.query)
		if len(m.matches) > 0 {
			m.searchNext()
		}
		return m, nil
	case explainDoneMsg:
		m.netBusy = false
		if msg.err != nil {
			if errors.Is(msg.err, ai.ErrDisabled) {
				m.lastMsg = "explain needs OPENAI_API_KEY (and no --offline)"
			} else {
				m.lastMsg = "explain failed: " + msg.err.Error()
			}
			return m, nil
		}
		m.openModal(modalExplain, "Explanation", msg.text)
		return m, nil
	case toastMsg:
		m.netBusy = false
		m.lastMsg = msg.text
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	before := m.tbl.Cursor()
	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	if m.tbl.Cursor() != before {
		m.reportViewport()
	}
	return m, cmd
}

// handleKey returns handled=false for keys the table should see.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit, true
	}
	if m.modalActive {
		return m.handleModalKey(msg), true
	}
	if m.inlineMode != inlineNone {
		if cmd, handled := m.handleInlineKey(msg); handled {
			return cmd, true
		}
	}

	km := m.keymap
	switch {
	case keyMatches(msg, km.Filter):
		m.startInline(inlineFilter, "filter: ", m.mgr.Filter())
		return nil, true
	case keyMatches(msg, km.ClearFilter):
		m.applyFilter("")
		return nil, true
	case keyMatches(msg, km.Search):
		m.startInline(inlineSearch, "search: ", m.searchPattern)
		return nil, true
	case keyMatches(msg, km.SearchNext):
		m.searchNext()
		return nil, true
	case keyMatches(msg, km.SearchPrev):
		m.searchPrev()
		return nil, true
	case keyMatches(msg, km.Reverse):
		sel, _ := m.selected()
		m.mgr.SetReversed(!m.mgr.Reversed())
		m.refreshRows()
		if i, ok := m.mgr.VisualIndexOf(sel.UUID); ok {
			m.setCursor(i)
		}
		return nil, true
	case keyMatches(msg, km.Paired):
		m.jumpToPaired()
		return nil, true
	case keyMatches(msg, km.Retry):
		m.lastErr = ""
		m.mgr.Retry()
		m.lastMsg = "retrying failed rows"
		return nil, true
	case keyMatches(msg, km.Detail):
		if r, ok := m.selected(); ok {
			m.detailUUID = r.UUID
			m.openModal(modalDetail, "", "")
			m.renderDetail()
		}
		return nil, true
	case keyMatches(msg, km.CopyContent):
		m.copySelected()
		return nil, true
	case keyMatches(msg, km.Explain):
		return m.explainSelected(), true
	case keyMatches(msg, km.ExportCSV):
		return m.exportCSV(), true
	case keyMatches(msg, km.ExportGz):
		return m.exportGz(), true
	case keyMatches(msg, km.AppLogs):
		m.openModal(modalLogs, "Application Logs", logx.Dump())
		m.modalVP.GotoBottom()
		return nil, true
	case keyMatches(msg, km.Top):
		m.setCursor(0)
		return nil, true
	case keyMatches(msg, km.Bottom):
		m.setCursor(len(m.rows) - 1)
		return nil, true
	case keyMatches(msg, km.Help):
		m.helpItems = m.buildHelpItems()
		m.helpSel = 0
		m.openModal(modalHelp, "Help", m.renderHelp())
		return nil, true
	case keyMatches(msg, km.Quit):
		return tea.Quit, true
	}
	return nil, false
}

func (m *Model) handleModalKey(msg tea.KeyMsg) tea.Cmd {
	if m.modalKind == modalHelp {
		switch {
		case msg.Type == tea.KeyUp:
			if m.helpSel > 0 {
				m.helpSel--
				m.modalVP.SetContent(m.renderHelp())
			}
		case msg.Type == tea.KeyDown:
			if m.helpSel+1 < len(m.helpItems) {
				m.helpSel++
				m.modalVP.SetContent(m.renderHelp())
			}
		case msg.Type == tea.KeyEnter:
			m.modalActive = false
			if len(m.helpItems) > 0 {
				return keyCmd(m.helpItems[m.helpSel].key)
			}
		case msg.Type == tea.KeyEsc || keyMatches(msg, m.keymap.Quit) || keyMatches(msg, m.keymap.Help):
			m.modalActive = false
		}
		return nil
	}
	switch {
	case msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter || keyMatches(msg, m.keymap.Quit):
		m.modalActive = false
		return nil
	case keyMatches(msg, m.keymap.CopyContent):
		if m.modalKind == modalDetail {
			m.copySelected()
		} else {
			copyToClipboard(m.modalBody)
			m.lastMsg = "copied to clipboard"
		}
		return nil
	case m.modalKind == modalDetail && keyMatches(msg, m.keymap.Paired):
		m.modalActive = false
		m.jumpToPaired()
		return nil
	case m.modalKind == modalDetail && keyMatches(msg, m.keymap.Explain):
		return m.explainSelected()
	}
	var cmd tea.Cmd
	m.modalVP, cmd = m.modalVP.Update(msg)
	return cmd
}

func (m *Model) startInline(mode inlineMode, prompt, value string) {
	m.inlineMode = mode
	m.searchEditing = true
	m.filterPreview, m.searchPreview = "", ""
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) stopInline() {
	m.inlineMode = inlineNone
	m.searchEditing = false
	m.input.Blur()
}

func (m *Model) handleInlineKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		q := strings.TrimSpace(m.input.Value())
		mode := m.inlineMode
		m.stopInline()
		if mode == inlineFilter {
			m.applyFilter(q)
			return nil, true
		}
		if q == "" {
			m.searchPattern, m.matches = "", nil
			return nil, true
		}
		m.netBusy = true
		return m.runSearch(q), true
	case tea.KeyEsc:
		m.stopInline()
		return nil, true
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		return nil, false
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	q := strings.TrimSpace(m.input.Value())
	switch m.inlineMode {
	case inlineFilter:
		m.mgr.TestFilterDebounced(q, func(res model.FilterTestResult, err error) {
			m.post(filterPreviewMsg{expr: q, res: res, err: err})
		})
	case inlineSearch:
		if q != "" {
			m.mgr.SearchDebounced(q, func(res model.SearchResult, err error) {
				m.post(searchPreviewMsg{query: q, res: res, err: err})
			})
		}
	}
	return cmd, true
}

func (m *Model) applyFilter(expr string) {
	if expr == m.mgr.Filter() {
		return
	}
	m.mgr.SetFilter(expr)
	m.matches = nil
	m.lastErr = ""
	if expr == "" {
		m.lastMsg = "filter cleared"
	} else {
		m.lastMsg = "filter: " + expr
	}
	logx.Infof("ui: filter set to %q", expr)
	m.refreshRows()
	m.setCursor(0)
}

// refreshRows rebuilds the table from the manager. The selection follows its
// message; a selection at the newest edge stays there.
func (m *Model) refreshRows() {
	prev, hadSel := m.selected()
	atNewest := false
	if n := len(m.rows); n > 0 {
		if m.mgr.Reversed() {
			atNewest = m.tbl.Cursor() == 0
		} else {
			atNewest = m.tbl.Cursor() == n-1
		}
	}

	m.rows = m.mgr.Records()
	cols := m.tbl.Columns()
	summaryW := 40
	if len(cols) > 0 {
		summaryW = cols[len(cols)-1].Width
	}
	trows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		trows[i] = rowCells(r, summaryW)
	}
	m.tbl.SetRows(trows)

	switch {
	case len(m.rows) == 0:
		m.tbl.SetCursor(0)
	case atNewest && !m.mgr.Reversed():
		m.tbl.SetCursor(len(m.rows) - 1)
	case atNewest:
		m.tbl.SetCursor(0)
	case hadSel:
		if i, ok := m.mgr.VisualIndexOf(prev.UUID); ok {
			m.tbl.SetCursor(i)
		}
	}
	if c := m.tbl.Cursor(); c >= len(m.rows) && len(m.rows) > 0 {
		m.tbl.SetCursor(len(m.rows) - 1)
	}
	m.reportViewport()
}

func (m *Model) setCursor(row int) {
	if len(m.rows) == 0 {
		return
	}
	if row < 0 {
		row = 0
	}
	if row >= len(m.rows) {
		row = len(m.rows) - 1
	}
	m.tbl.SetCursor(row)
	m.reportViewport()
}

// reportViewport tells the manager which rows may be on screen. The table
// keeps the cursor visible, so a window of one page either side covers it.
func (m *Model) reportViewport() {
	n := len(m.rows)
	if n == 0 {
		return
	}
	h := m.tbl.Height()
	if h < 1 {
		h = 1
	}
	c := m.tbl.Cursor()
	start, end := c-h, c+h+1
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	m.mgr.ReportViewportRange(start, end)
}

func (m *Model) selected() (model.DisplayRecord, bool) {
	c := m.tbl.Cursor()
	if c < 0 || c >= len(m.rows) {
		return model.DisplayRecord{}, false
	}
	return m.rows[c], true
}

func (m *Model) copySelected() {
	r, ok := m.selected()
	if !ok {
		return
	}
	if !r.Ready() {
		m.lastMsg = "message not loaded yet"
		return
	}
	copyToClipboard(r.RenderedContent)
	m.lastMsg = "copied to clipboard"
}

func (m *Model) explainSelected() tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	if !r.Ready() {
		m.lastMsg = "message not loaded yet"
		return nil
	}
	parts := []string{r.RenderedContent}
	if i, ok := m.mgr.VisualIndexOf(r.Index.PairedUUID); ok {
		if p, ok := m.mgr.Record(i); ok && p.Ready() {
			if p.Index.IsRequest {
				parts = []string{p.RenderedContent, r.RenderedContent}
			} else {
				parts = append(parts, p.RenderedContent)
			}
		}
	}
	m.netBusy = true
	m.lastMsg = "explaining..."
	client := m.ai
	return func() tea.Msg {
		text, err := client.Explain(m.ctx, parts...)
		return explainDoneMsg{text: text, err: err}
	}
}

func (m *Model) exportCSV() tea.Cmd {
	entries := make([]model.IndexEntry, len(m.rows))
	for i, r := range m.rows {
		entries[i] = r.Index
	}
	path := m.cfg.ExportOut
	if path == "" || m.cfg.ExportFormat != string(export.FormatCSV) {
		path = export.DefaultName(export.FormatCSV, time.Now())
	}
	m.netBusy = true
	return func() tea.Msg {
		if err := export.IndexCSV(path, entries); err != nil {
			logx.Warnf("export: %v", err)
			return toastMsg{text: "export failed: " + err.Error()}
		}
		logx.Infof("export: wrote %d rows to %s", len(entries), path)
		return toastMsg{text: fmt.Sprintf("exported %d rows to %s", len(entries), path)}
	}
}

func (m *Model) exportGz() tea.Cmd {
	path := export.DefaultName(export.FormatGzip, time.Now())
	filter := m.mgr.Filter()
	m.netBusy = true
	m.lastMsg = "downloading log..."
	return func() tea.Msg {
		n, err := export.Download(m.ctx, m.gw, filter, path)
		if err != nil {
			logx.Warnf("export: %v", err)
			return toastMsg{text: "download failed: " + err.Error()}
		}
		logx.Infof("export: downloaded %d bytes to %s", n, path)
		return toastMsg{text: fmt.Sprintf("downloaded %d bytes to %s", n, path)}
	}
}
