// Package ui holds terminal rendering helpers shared by the CLI commands.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)
)

// RenderPass renders s in the success colour.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders s in the warning colour.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr renders s in the error colour.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderAccent renders s in the accent colour, bold.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderFaint renders s dimmed.
func RenderFaint(s string) string { return faintStyle.Render(s) }

// RenderHeader renders a section header with a bottom border.
func RenderHeader(s string) string { return headerStyle.Render(s) }

// StatusBadge renders a sync status with its conventional colour:
// green for synced, orange for pending, red for conflict.
func StatusBadge(status string) string {
	switch status {
	case "synced":
		return passStyle.Render(status)
	case "pending":
		return warnStyle.Render(status)
	case "conflict":
		return errStyle.Render(status)
	default:
		return status
	}
}

// PriorityLabel renders a numeric priority as "P0".."P4", highlighting P0 and P1.
func PriorityLabel(p int) string {
	label := fmt.Sprintf("P%d", p)
	if p <= 1 {
		return accentStyle.Render(label)
	}
	return label
}
