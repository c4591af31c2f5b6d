package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("12")  // bright blue
	colorLive    = lipgloss.Color("10")  // bright green
	colorDim     = lipgloss.Color("240") // gray
	colorGold    = lipgloss.Color("214")
	colorCursor  = lipgloss.Color("11") // bright yellow
	colorAlert   = lipgloss.Color("9")  // bright red
	colorBorder  = lipgloss.Color("238")

	// header and inputs
	styleTitle       = lipgloss.NewStyle().Foreground(colorDim).Bold(true)
	styleInputPrompt = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleInput       = styleInputPrompt

	// session rows
	styleCursor = lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	styleLive   = lipgloss.NewStyle().Foreground(colorLive)
	styleEnded  = lipgloss.NewStyle().Foreground(colorDim)
	styleFollow = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleVIP    = lipgloss.NewStyle().Foreground(colorGold)

	// panels: the preview border turns green while a replay streams
	stylePanel   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder)
	stylePreview = stylePanel.BorderForeground(colorPrimary)
	styleReplay  = stylePanel.BorderForeground(colorLive)

	// bottom line
	styleHelp       = lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)
	styleFlash      = styleHelp.Foreground(colorCursor)
	styleFlashError = styleHelp.Foreground(colorAlert)
)
