package plotpage

// Theme represents a color theme for dashboards.
type Theme string

const (
	// ThemeLight is the light color theme.
	ThemeLight Theme = "light"
	// ThemeDark is the dark color theme.
	ThemeDark Theme = "dark"
)

// ThemeConfig holds the theme-specific styling values.
type ThemeConfig struct {
	Background    string
	Surface       string
	Border        string
	TextPrimary   string
	TextMuted     string
	Accent        string
	Insertions    string
	Deletions     string
	CommitCount   string
	ChartGrid     string
	ChartAxis     string
	ChartText     string
	ChartTextMute string
}

// ParseTheme maps a name to a Theme, defaulting to dark.
func ParseTheme(name string) Theme {
	if Theme(name) == ThemeLight {
		return ThemeLight
	}

	return ThemeDark
}

// GetThemeConfig returns the configuration for a given theme.
func GetThemeConfig(theme Theme) ThemeConfig {
	if theme == ThemeLight {
		return lightTheme
	}

	return darkTheme
}

var lightTheme = ThemeConfig{
	Background:    "#fafaf9", // stone-50.
	Surface:       "#ffffff",
	Border:        "#e7e5e4", // stone-200.
	TextPrimary:   "#1c1917", // stone-900.
	TextMuted:     "#78716c", // stone-500.
	Accent:        "#a16207", // amber-700.
	Insertions:    "#16a34a", // green-600.
	Deletions:     "#dc2626", // red-600.
	CommitCount:   "#0369a1", // sky-700.
	ChartGrid:     "#e7e5e4",
	ChartAxis:     "#a8a29e", // stone-400.
	ChartText:     "#44403c", // stone-700.
	ChartTextMute: "#78716c",
}

var darkTheme = ThemeConfig{
	Background:    "#0c0a09", // stone-950.
	Surface:       "#1c1917", // stone-900.
	Border:        "#44403c", // stone-700.
	TextPrimary:   "#fafaf9",
	TextMuted:     "#a8a29e",
	Accent:        "#d97706", // amber-600.
	Insertions:    "#22c55e", // green-500.
	Deletions:     "#ef4444", // red-500.
	CommitCount:   "#38bdf8", // sky-400.
	ChartGrid:     "#44403c",
	ChartAxis:     "#57534e", // stone-600.
	ChartText:     "#d6d3d1", // stone-300.
	ChartTextMute: "#a8a29e",
}
