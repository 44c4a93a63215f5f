package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

var (
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ColorEnabled reports whether terminal output is colored
func ColorEnabled() bool {
	return supportsColor
}

// Printer writes user-facing output. A quiet printer only writes errors.
type Printer struct {
	out   io.Writer
	quiet bool
}

// NewPrinter creates a printer writing to out, or stdout when out is nil
func NewPrinter(out io.Writer, quiet bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, quiet: quiet}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Quiet reports whether informational output is suppressed
func (p *Printer) Quiet() bool {
	return p.quiet
}

// Header displays a boxed title
func (p *Printer) Header(title string) {
	if p.quiet {
		return
	}
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(p.out, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(p.out, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(p.out, "+"+strings.Repeat("-", width-2)+"+")
}

// Section displays a bold section title
func (p *Printer) Section(title string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", ColorBold(title))
}

// KeyValue displays an indented key/value line
func (p *Printer) KeyValue(key string, value interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "  %-22s %v\n", key+":", value)
}

// Success displays a success message
func (p *Printer) Success(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// Warning displays a warning message
func (p *Printer) Warning(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// Info displays an info message
func (p *Printer) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", ColorInfo("INFO:"), message)
}

// Error displays an error with a hint when one applies. Errors are shown
// even when quiet.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.out, "\n%s\n", ColorError("ERROR:"))

	message := err.Error()
	for i, line := range strings.Split(message, "\n") {
		if i == 0 {
			fmt.Fprintf(p.out, "  %s\n", line)
		} else {
			fmt.Fprintf(p.out, "  %s\n", ColorDim(line))
		}
	}

	if suggestion := getSuggestion(message); suggestion != "" {
		fmt.Fprintf(p.out, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
	}
}

// getSuggestion maps common engine failures to a hint
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "no files found"):
		return "Check the input path and extension; directories are searched recursively"
	case strings.Contains(lower, "binder error"):
		return "A configured column does not exist in the source; review the schema section"
	case strings.Contains(lower, "out of memory"):
		return "Lower engine.threads or raise engine.memory_limit"
	case strings.Contains(lower, "permission denied"):
		return "Ensure the output directory is writable"
	case strings.Contains(lower, "nosuchbucket") || strings.Contains(lower, "accessdenied"):
		return "Check the bucket name and the active AWS profile"
	default:
		return ""
	}
}

// FormatCount renders an integer with thousands separators
func FormatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatPct renders a percentage with two decimals
func FormatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
