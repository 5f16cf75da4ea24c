package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// noStatus is printed for events without a recognized outcome.
const noStatus = "-"

// Printer writes one line per event to w.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	format    string
	userWidth int

	red, yellow, green, blue lipgloss.Style
}

// NewPrinter creates a printer. color is auto, always or never; auto
// enables colors only when w is a terminal.
func NewPrinter(w io.Writer, format, color string, userWidth int) *Printer {
	r := lipgloss.NewRenderer(w)
	switch color {
	case "always":
		r.SetColorProfile(termenv.ANSI)
	case "never":
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		w:         w,
		format:    format,
		userWidth: userWidth,
		red:       r.NewStyle().Foreground(lipgloss.Color("1")),
		yellow:    r.NewStyle().Foreground(lipgloss.Color("3")),
		green:     r.NewStyle().Foreground(lipgloss.Color("2")),
		blue:      r.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

// ColorStatus decorates a status token. Styled tokens end with an SGR reset.
func (p *Printer) ColorStatus(s parser.Status) string {
	switch s {
	case parser.StatusFailed:
		return p.red.Render(string(s))
	case parser.StatusDisconnected, parser.StatusClosed:
		return p.yellow.Render(string(s))
	case parser.StatusSuccess:
		return p.green.Render(string(s))
	case parser.StatusNone:
		return noStatus
	default:
		return Sanitize(string(s))
	}
}

// FormatEvent renders the human-readable line without a trailing newline.
func (p *Printer) FormatEvent(evt *parser.AuthEvent) string {
	return fmt.Sprintf("[%s %s] → From %s:%s → user: %-*s → status: %s",
		Sanitize(evt.Date), Sanitize(evt.Time),
		Sanitize(evt.SourceIP), Sanitize(evt.Port),
		p.userWidth, Sanitize(evt.User),
		p.ColorStatus(evt.Status))
}

// PrintEvent writes evt in the configured format.
func (p *Printer) PrintEvent(evt *parser.AuthEvent) error {
	if p.format == FormatJSON {
		return p.writeJSON(evt)
	}
	return p.writeLine(p.FormatEvent(evt))
}

// PrintAlert writes a detection alert.
func (p *Printer) PrintAlert(alert *types.Alert) error {
	if p.format == FormatJSON {
		return p.writeJSON(struct {
			Alert *types.Alert `json:"alert"`
		}{alert})
	}
	return p.writeLine(fmt.Sprintf("%s Risk: %s | %s\nExplain: %s",
		p.red.Render("[ALERT]"), alert.Risk, Sanitize(alert.Summary), Sanitize(alert.Explanation)))
}

// Banner writes an informational line. Nothing is written in JSON mode so
// the stream stays machine readable.
func (p *Printer) Banner(msg string) error {
	if p.format == FormatJSON {
		return nil
	}
	return p.writeLine(p.blue.Render(Sanitize(msg)))
}

func (p *Printer) writeLine(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, s+"\n")
	return err
}

func (p *Printer) writeJSON(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.NewEncoder(p.w).Encode(v)
}

// Sanitize strips control characters (except newline and tab) to prevent
// terminal injection.
func Sanitize(s string) string {
	clean := true
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' || r == 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var builder strings.Builder
	for _, r := range s {
		if r >= 32 && r != 0x7f || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
