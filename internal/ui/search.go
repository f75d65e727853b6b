package ui

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"proxylog/internal/queue"
)

// runSearch asks the backend for matches under the current filter.
func (m *Model) runSearch(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.mgr.Search(m.ctx, q, queue.CallOptions{PropagateError: true, SuppressError: true})
		return searchDoneMsg{query: q, res: res, err: err}
	}
}

// matchRows returns the visual rows of the current matches, ascending.
func (m *Model) matchRows() []int {
	rows := make([]int, 0, len(m.matches))
	for _, e := range m.matches {
		if i, ok := m.mgr.VisualIndexOf(e.UUID); ok {
			rows = append(rows, i)
		}
	}
	sort.Ints(rows)
	return rows
}

func (m *Model) searchNext() {
	rows := m.matchRows()
	if len(rows) == 0 {
		m.lastMsg = "no matches"
		return
	}
	cur := m.tbl.Cursor()
	for _, r := range rows {
		if r > cur {
			m.jumpToRow(r)
			return
		}
	}
	m.jumpToRow(rows[0])
	m.lastMsg = "search wrapped"
}

func (m *Model) searchPrev() {
	rows := m.matchRows()
	if len(rows) == 0 {
		m.lastMsg = "no matches"
		return
	}
	cur := m.tbl.Cursor()
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i] < cur {
			m.jumpToRow(rows[i])
			return
		}
	}
	m.jumpToRow(rows[len(rows)-1])
	m.lastMsg = "search wrapped"
}

// jumpToRow scrolls to a row through the manager so its content is loaded
// before the view lands on it.
func (m *Model) jumpToRow(row int) {
	if row < 0 || row >= len(m.rows) {
		return
	}
	m.mgr.ScrollToMessage(m.rows[row].UUID)
	m.setCursor(row)
}

// jumpToPaired moves to the other half of the selected exchange.
func (m *Model) jumpToPaired() {
	r, ok := m.selected()
	if !ok {
		return
	}
	paired := r.Index.PairedUUID
	if paired == "" {
		m.lastMsg = "no paired message"
		return
	}
	if _, ok := m.mgr.VisualIndexOf(paired); !ok {
		m.lastMsg = fmt.Sprintf("paired message %s is not under the current filter", paired)
		return
	}
	m.mgr.ScrollToMessage(paired)
}
