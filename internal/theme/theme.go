package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
)

// BannerStyle is used for the start-up banner.
var BannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// SuccessMarkStyle colors the check mark of completed steps.
var SuccessMarkStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// WarnMarkStyle colors the mark of failed or skipped steps.
var WarnMarkStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// InfoMarkStyle colors the mark of informational lines.
var InfoMarkStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// CredentialStyle highlights the retrieved API key.
var CredentialStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// ErrorStyle is used for fatal configuration errors.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SpinnerStyle colors the progress spinner frames.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue)
