package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styling is applied only when stdout is a terminal; piped output stays
// plain.
var stdoutIsTTY = term.IsTerminal(int(os.Stdout.Fd()))

var (
	styleStep  = lipgloss.NewStyle().Bold(true)
	styleStage = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleBold  = lipgloss.NewStyle().Bold(true)
)

func render(style lipgloss.Style, s string) string {
	if !stdoutIsTTY {
		return s
	}
	return style.Render(s)
}
