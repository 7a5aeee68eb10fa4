// Package plotpage renders interactive HTML dashboards with go-echarts.
package plotpage

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
)

const (
	echartsAsset = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"
	styleTagLen  = len("</style>")
)

// Renderable is implemented by go-echarts charts.
type Renderable interface {
	Render(w io.Writer) error
}

// Stat is a headline number shown above the charts.
type Stat struct {
	Label string
	Value string
}

// Section is one titled chart.
type Section struct {
	Title    string
	Subtitle string
	Chart    Renderable
}

// Page is a complete dashboard.
type Page struct {
	Title       string
	Description string
	Theme       Theme
	Stats       []Stat
	Sections    []Section
}

// NewPage creates a dark-themed page.
func NewPage(title, description string) *Page {
	return &Page{Title: title, Description: description, Theme: ThemeDark}
}

// Add appends sections to the page.
func (p *Page) Add(sections ...Section) {
	p.Sections = append(p.Sections, sections...)
}

// Render writes the page as a standalone HTML document.
func (p *Page) Render(w io.Writer) error {
	sections := make([]sectionData, 0, len(p.Sections))

	for _, s := range p.Sections {
		chart, err := renderChart(s.Chart)
		if err != nil {
			return fmt.Errorf("render section %q: %w", s.Title, err)
		}

		sections = append(sections, sectionData{Title: s.Title, Subtitle: s.Subtitle, Chart: template.HTML(chart)})
	}

	data := pageData{
		Title:       p.Title,
		Description: p.Description,
		Theme:       GetThemeConfig(p.Theme),
		Asset:       echartsAsset,
		Stats:       p.Stats,
		Sections:    sections,
	}

	var buf bytes.Buffer

	err := pageTemplate.Execute(&buf, data)
	if err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}

	_, err = w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("writing page: %w", err)
	}

	return nil
}

type pageData struct {
	Title       string
	Description string
	Theme       ThemeConfig
	Asset       string
	Stats       []Stat
	Sections    []sectionData
}

type sectionData struct {
	Title    string
	Subtitle string
	Chart    template.HTML
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Asset}}"></script>
<style>
body { background: {{.Theme.Background}}; color: {{.Theme.TextPrimary}}; font-family: system-ui, sans-serif; margin: 0; padding: 24px; }
h1 { margin: 0 0 4px 0; }
.muted { color: {{.Theme.TextMuted}}; }
.stats { display: flex; gap: 16px; margin: 24px 0; flex-wrap: wrap; }
.stat, .section { background: {{.Theme.Surface}}; border: 1px solid {{.Theme.Border}}; border-radius: 8px; padding: 16px; }
.stat .value { font-size: 24px; color: {{.Theme.Accent}}; }
.section { margin-bottom: 24px; }
.echart-box { width: 100%; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Description}}<p class="muted">{{.Description}}</p>{{end}}
{{if .Stats}}<div class="stats">{{range .Stats}}<div class="stat"><div class="muted">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}</div>{{end}}
{{range .Sections}}<div class="section">
<h2>{{.Title}}</h2>
{{if .Subtitle}}<p class="muted">{{.Subtitle}}</p>{{end}}
{{.Chart}}
</div>
{{end}}
</body>
</html>
`))

func renderChart(chart Renderable) (string, error) {
	if chart == nil {
		return "", nil
	}

	var buf bytes.Buffer

	err := chart.Render(&buf)
	if err != nil {
		return "", err
	}

	return extractChartContent(buf.String()), nil
}

// extractChartContent strips the document shell go-echarts wraps every chart
// in, keeping the container div and its script.
func extractChartContent(html string) string {
	trimmed := strings.TrimSpace(html)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return html
	}

	start := strings.Index(html, `<div class="container">`)
	end := strings.Index(html, `</body>`)

	if start == -1 || end == -1 || end < start {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			return content
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			return content
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}
}
