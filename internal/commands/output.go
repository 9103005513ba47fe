package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
)

// printer writes status lines prefixed with a colored glyph.
type printer struct {
	w io.Writer
}

func (p printer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, successStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func (p printer) Infof(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, infoStyle.Render("•")+" "+fmt.Sprintf(format, args...))
}

func (p printer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, errorStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

func (p printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p printer) Section(title string) {
	_, _ = fmt.Fprintln(p.w, headerStyle.Render(title))
}
