package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyMap struct {
	Search      tea.Key
	SearchNext  tea.Key
	SearchPrev  tea.Key
	Filter      tea.Key
	ClearFilter tea.Key
	Reverse     tea.Key
	Paired      tea.Key
	Retry       tea.Key
	Detail      tea.Key
	CopyContent tea.Key
	Explain     tea.Key
	ExportCSV   tea.Key
	ExportGz    tea.Key
	AppLogs     tea.Key
	Top         tea.Key
	Bottom      tea.Key
	Help        tea.Key
	Quit        tea.Key
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Search:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'/'}},
		SearchNext:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'n'}},
		SearchPrev:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'N'}},
		Filter:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'f'}},
		ClearFilter: tea.Key{Type: tea.KeyRunes, Runes: []rune{'F'}},
		Reverse:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'r'}},
		Paired:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'p'}},
		Retry:       tea.Key{Type: tea.KeyRunes, Runes: []rune{'R'}},
		Detail:      tea.Key{Type: tea.KeyEnter},
		CopyContent: tea.Key{Type: tea.KeyRunes, Runes: []rune{'c'}},
		Explain:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'i'}},
		ExportCSV:   tea.Key{Type: tea.KeyRunes, Runes: []rune{'e'}},
		ExportGz:    tea.Key{Type: tea.KeyRunes, Runes: []rune{'E'}},
		AppLogs:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'L'}},
		Top:         tea.Key{Type: tea.KeyRunes, Runes: []rune{'g'}},
		Bottom:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'G'}},
		Help:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'?'}},
		Quit:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}
}

func keyMatches(msg tea.KeyMsg, k tea.Key) bool {
	if k.Type != tea.KeyRunes {
		return msg.Type == k.Type
	}
	if len(k.Runes) > 0 {
		return msg.String() == string(k.Runes)
	}
	return false
}

// binding adapts a key for the footer help line.
func binding(k tea.Key, desc string) key.Binding {
	l := keyLabel(k)
	return key.NewBinding(key.WithKeys(l), key.WithHelp(l, desc))
}

// ShortHelp is the footer shown under the table.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		binding(km.Filter, "filter"),
		binding(km.Search, "search"),
		binding(km.Paired, "paired"),
		binding(km.Reverse, "reverse"),
		binding(km.Detail, "details"),
		binding(km.Help, "help"),
		binding(km.Quit, "quit"),
	}
}

func (km KeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{km.ShortHelp()} }
