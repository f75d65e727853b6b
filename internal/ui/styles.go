package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Base        lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Help        lipgloss.Style
	Pending     lipgloss.Style
	Failed      lipgloss.Style
	Request     lipgloss.Style
	Response    map[int]lipgloss.Style // by status class: 2, 3, 4, 5
	TableStyles TableStyles
	PopupBox    lipgloss.Style
	PopupTitle  lipgloss.Style

	JSONKey    lipgloss.Style
	JSONString lipgloss.Style
	JSONNumber lipgloss.Style
	JSONBool   lipgloss.Style
	JSONNull   lipgloss.Style
	JSONPunct  lipgloss.Style

	// ChromaStyle names the chroma style used for rendered content.
	ChromaStyle string
}

type TableStyles struct {
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Selected lipgloss.Style
}

func NewStyles(dark bool) Styles {
	s := Styles{}
	if dark {
		s.Base = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		s.Pending = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
		s.JSONKey = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
		s.JSONString = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
		s.ChromaStyle = "monokai"
	} else {
		s.Base = lipgloss.NewStyle()
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Pending = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
		s.JSONKey = lipgloss.NewStyle().Foreground(lipgloss.Color("27"))
		s.JSONString = lipgloss.NewStyle().Foreground(lipgloss.Color("28"))
		s.ChromaStyle = "github"
	}
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Failed = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Request = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	s.Response = map[int]lipgloss.Style{
		2: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		3: lipgloss.NewStyle().Foreground(lipgloss.Color("44")),
		4: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		5: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	s.JSONNumber = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	s.JSONBool = lipgloss.NewStyle().Foreground(lipgloss.Color("177"))
	s.JSONNull = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	s.JSONPunct = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	s.TableStyles = TableStyles{
		Header:   lipgloss.NewStyle().Bold(true).PaddingRight(1),
		Cell:     lipgloss.NewStyle().PaddingRight(1),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")),
	}
	return s
}
