// Package tui renders styled terminal views of an emissions inventory.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every view.
const (
	ColorHeader    = lipgloss.Color("39")
	ColorBorder    = lipgloss.Color("240")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("241")
	ColorOK        = lipgloss.Color("42")
	ColorWarning   = lipgloss.Color("214")
	ColorHighlight = lipgloss.Color("212")
)

// Direction markers for year-over-year changes.
const (
	IconArrowUp    = "↑"
	IconArrowDown  = "↓"
	IconArrowRight = "→"
	IconPending    = "…"
)

const (
	labelWidth    = 34
	valueWidth    = 18
	separatorLen  = labelWidth + valueWidth
	categoryWidth = 44
)
