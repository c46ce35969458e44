// Package ui provides terminal styling helpers for the stillsync CLI.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderPass styles text as a success indicator.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles text as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles text as a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles text as an accent highlight.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles text as secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderBold styles text in bold.
func RenderBold(s string) string { return boldStyle.Render(s) }
