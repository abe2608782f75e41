// Package ui renders zipsync reports for the terminal.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	// Semantic status colors (Ayu theme - adaptive light/dark)
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

// Status styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Status icons - consistent semantic indicators
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// Tree characters for hierarchical display
const (
	TreeLast   = "└─ " // last child / detail line
	TreeIndent = "  "  // 2-space indent per level
)

// SeparatorLight underlines report headers.
const SeparatorLight = "──────────────────────────────────────────"


// Palette applies the status styles, or leaves text untouched when color is
// off.
type Palette struct {
	color bool
}

// NewPalette returns a palette; color false renders plain text.
func NewPalette(color bool) Palette {
	return Palette{color: color}
}

func (p Palette) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// Pass renders text with pass (green) styling
func (p Palette) Pass(s string) string { return p.render(PassStyle, s) }

// Warn renders text with warning (yellow) styling
func (p Palette) Warn(s string) string { return p.render(WarnStyle, s) }

// Fail renders text with fail (red) styling
func (p Palette) Fail(s string) string { return p.render(FailStyle, s) }

// Muted renders text with muted (gray) styling
func (p Palette) Muted(s string) string { return p.render(MutedStyle, s) }

// Accent renders text with accent (blue) styling
func (p Palette) Accent(s string) string { return p.render(AccentStyle, s) }

// Category renders a section header in uppercase with accent color
func (p Palette) Category(s string) string {
	return p.render(CategoryStyle, strings.ToUpper(s))
}

// Separator renders the light separator line in muted color
func (p Palette) Separator() string { return p.Muted(SeparatorLight) }
