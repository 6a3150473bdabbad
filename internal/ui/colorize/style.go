// Package colorize provides terminal highlighting for hook listings.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

func init() {
	_ = SignatureDark
}

// Palette shared by the chroma style and the badges.
const (
	ColorKeyword = "#569CD6" // modifiers, primitive types
	ColorClass   = "#4EC9B0" // class names
	ColorMember  = "#FFC800" // method and field names
	ColorNumber  = "#FF80C0"
	ColorString  = "#00FF00"
	ColorDetail  = "#B4B4B4"
	ColorBorder  = "#505050"
	ColorError   = "#FF5050"
	ColorOK      = "#22C55E"
	ColorWarn    = "#EAB308"
)

// SignatureDark highlights member signatures rendered by jvm.Member.String.
var SignatureDark = styles.Register(chroma.MustNewStyle("dexhook-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#000000",
	chroma.Comment:    "#FF8000",

	chroma.Keyword:            ColorKeyword,
	chroma.KeywordType:        ColorKeyword,
	chroma.KeywordDeclaration: ColorKeyword,
	chroma.Name:               ColorClass,
	chroma.NameClass:          ColorClass,
	chroma.NameNamespace:      ColorClass,
	chroma.NameAttribute:      ColorMember,
	chroma.NameFunction:       ColorMember,

	chroma.LiteralNumber: ColorNumber,
	chroma.String:        ColorString,

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: ColorDetail,
}))

var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	okBadge   = badgeBase.Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color(ColorOK))
	warnBadge = badgeBase.Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color(ColorWarn))
	failBadge = badgeBase.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color(ColorError))
	dimBadge  = badgeBase.Foreground(lipgloss.Color(ColorDetail)).Background(lipgloss.Color(ColorBorder))
)
