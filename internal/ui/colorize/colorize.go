package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

func getSignatureStyle() *chroma.Style {
	for _, name := range []string{"dexhook-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("DEXHOOK_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Signature colorizes a Java member or class signature using Chroma.
func Signature(sig string) string {
	if IsDisabled() {
		return sig
	}

	lexer := lexers.Get("java")
	if lexer == nil {
		return sig
	}

	iterator, err := lexer.Tokenise(nil, sig)
	if err != nil {
		return sig
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getSignatureStyle(), iterator); err != nil {
		return sig
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func rgb(hex, s string) string {
	if IsDisabled() {
		return s
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return s
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm%s\033[0m", r, g, b, s)
}

// ClassName formats a class name.
func ClassName(name string) string { return rgb(ColorClass, name) }

// Tag formats an entry tag or trace hashtag in light pink
func Tag(tag string) string { return rgb("#FFB4C8", tag) }

// Number formats a counter.
func Number(n int) string { return rgb(ColorMember, fmt.Sprintf("%d", n)) }

// Detail formats detail text in light gray
func Detail(detail string) string { return rgb(ColorDetail, detail) }

// Border formats border characters in dark gray
func Border(s string) string { return rgb(ColorBorder, s) }

// Header formats header text in blue
func Header(s string) string { return rgb(ColorKeyword, s) }

// Error formats error messages in red
func Error(s string) string { return rgb(ColorError, s) }

// String formats string values in green
func String(s string) string { return rgb(ColorString, s) }

// Badge renders a status label. Known outcome words pick the color:
// installed/ok green, already-installed/advisory yellow, anything carrying
// "fail", "not-found" or "no-such" red, the rest gray.
func Badge(status string) string {
	if IsDisabled() {
		return "[" + status + "]"
	}
	return badgeStyle(status).Render(status)
}

func badgeStyle(status string) lipgloss.Style {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "fail"), strings.Contains(s, "not-found"), strings.Contains(s, "no-such"), s == "error":
		return failBadge
	case s == "installed", s == "ok", s == "resolved":
		return okBadge
	case s == "already-installed", s == "advisory", s == "warn":
		return warnBadge
	default:
		return dimBadge
	}
}
