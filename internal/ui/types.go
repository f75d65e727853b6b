package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"proxylog/internal/ai"
	"proxylog/internal/config"
	"proxylog/internal/export"
	"proxylog/internal/model"
	"proxylog/internal/queue"
)

// Backend is what the viewer needs from the log backend client.
type Backend interface {
	queue.Gateway
	export.Exporter
}

type modalKind int

const (
	modalNone modalKind = iota
	modalHelp
	modalDetail
	modalLogs
	modalExplain
)

type inlineMode int

const (
	inlineNone inlineMode = iota
	inlineSearch
	inlineFilter
)

type Model struct {
	ctx    context.Context
	cfg    *config.Config
	mgr    *queue.Manager
	gw     Backend
	ai     *ai.OpenAIClient
	events chan tea.Msg

	// rows mirrors the table: one display record per visual row
	rows []model.DisplayRecord

	// UI
	tbl        table.Model
	help       help.Model
	styles     Styles
	input      textinput.Model
	spin       spinner.Model
	keymap     KeyMap
	termWidth  int
	termHeight int

	// status
	lastMsg  string
	lastErr  string
	netBusy  bool
	errCount int

	// Modal popup
	modalActive bool
	modalKind   modalKind
	modalVP     viewport.Model
	modalTitle  string
	modalBody   string
	detailUUID  string

	// Help menu state
	helpItems []helpItem
	helpSel   int

	// Search state: matches in backend offset order
	searchPattern string
	matches       []model.IndexEntry
	searchPreview string

	// Filter editing
	filterPreview string

	inlineMode    inlineMode
	searchEditing bool
}

type helpItem struct {
	group string
	text  string
	key   tea.Key
}

// Messages delivered through Model.events or returned by commands.
type (
	eventMsg   struct{ msg tea.Msg }
	changesMsg struct{}
	scrollMsg  struct{ row int }
	errorMsg   struct {
		text string
		code int
	}
	filterPreviewMsg struct {
		expr string
		res  model.FilterTestResult
		err  error
	}
	searchPreviewMsg struct {
		query string
		res   model.SearchResult
		err   error
	}
	searchDoneMsg struct {
		query string
		res   model.SearchResult
		err   error
	}
	explainDoneMsg struct {
		text string
		err  error
	}
	toastMsg struct{ text string }
)

func keyCmd(k tea.Key) tea.Cmd {
	return func() tea.Msg {
		if k.Type == tea.KeyRunes {
			return tea.KeyMsg{Type: k.Type, Runes: k.Runes}
		}
		return tea.KeyMsg{Type: k.Type}
	}
}

func keyLabel(k tea.Key) string {
	switch k.Type {
	case tea.KeyRunes:
		if len(k.Runes) == 1 {
			r := k.Runes[0]
			if r == ' ' {
				return "space"
			}
			return string(r)
		}
		return strings.ToLower(string(k.Runes))
	case tea.KeyEnter:
		return "enter"
	case tea.KeyEsc:
		return "esc"
	case tea.KeyUp:
		return "up"
	case tea.KeyDown:
		return "down"
	case tea.KeyPgUp:
		return "pgup"
	case tea.KeyPgDown:
		return "pgdown"
	default:
		return strings.ToLower(k.String())
	}
}
