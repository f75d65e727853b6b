package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"proxylog/internal/ai"
	"proxylog/internal/config"
	"proxylog/internal/queue"
	"proxylog/internal/util/logx"
)

// eventBuffer bounds undelivered background events; older ones are dropped.
const eventBuffer = 64

func initialModel(ctx context.Context, cfg *config.Config, gw Backend) *Model {
	m := &Model{
		ctx:    ctx,
		cfg:    cfg,
		gw:     gw,
		events: make(chan tea.Msg, eventBuffer),
		help:   help.New(),
		styles: NewStyles(cfg.Theme == config.ThemeDark),
		keymap: DefaultKeyMap(),
		input:  textinput.New(),
		spin:   spinner.New(),
	}
	if !cfg.Offline {
		m.ai = ai.NewOpenAIClient(cfg.OpenAIKey(), cfg.OpenAIBase, cfg.OpenAIModel, cfg.OpenAITimeout())
	}
	m.mgr = queue.New(ctx, gw, queue.Options{
		PollInterval:     cfg.Poll,
		MaxCachedContent: cfg.MaxCached,
		Filter:           cfg.Filter,
		Reversed:         cfg.Reversed,
		OnError: func(message string, code int) {
			m.post(errorMsg{text: message, code: code})
		},
		OnScroll: func(row int) {
			m.post(scrollMsg{row: row})
		},
	})

	m.spin.Spinner = spinner.Dot
	m.input.CharLimit = 512
	m.modalVP = viewport.New(80, 20)

	m.tbl = table.New(table.WithFocused(true), table.WithHeight(20))
	m.tbl.SetColumns(m.columns(120))
	ts := table.DefaultStyles()
	ts.Header = m.styles.TableStyles.Header
	ts.Cell = m.styles.TableStyles.Cell
	ts.Selected = m.styles.TableStyles.Selected
	m.tbl.SetStyles(ts)
	return m
}

// post delivers a background event to the program without blocking the
// caller. When the buffer is full the event is dropped and logged.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		logx.Warnf("ui: event dropped: %T", msg)
	}
}

// listen waits for the next manager change or background event. Exactly one
// listen is outstanding; Update re-arms it for every eventMsg.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.mgr.Changes():
			return eventMsg{changesMsg{}}
		case ev := <-m.events:
			return eventMsg{ev}
		}
	}
}

func Run(ctx context.Context, cfg *config.Config, gw Backend) error {
	m := initialModel(ctx, cfg, gw)
	defer m.mgr.Close()
	m.mgr.Start()
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.spin.Tick)
}
