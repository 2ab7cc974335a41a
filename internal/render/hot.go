package render

import (
	"fmt"
	"io"
	"text/template"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

const hotTemplate = `# {{len .Papers}} {{.Label}} ({{.From}} ~ {{.To}})
{{range .Papers}}
### {{.No}}. {{.Title}}
{{.Authors}}
:arrows_clockwise: {{.Reposts}}    :heart: {{.Likes}}
:link: abs: {{.Abstract}}
{{if .PDF}}:link: pdf: {{.PDF}}
{{end}}
{{.Subjects}}

> {{.Summary}}

{{range .Mentions}}
**{{.Name}} @{{.Handle}} (:arrows_clockwise: {{.Reposts}}    :heart: {{.Likes}}){{if .Created}} {{.Created}}{{end}}**
{{.Link}}

{{.Quote}}

{{end}}
{{end}}`

// Hot lists papers with the most social engagement, numbered, with their
// most popular mentions quoted.
type Hot struct {
	tmpl *template.Template
}

type hotData struct {
	Label  string
	From   string
	To     string
	Papers []paperView
}

// NewHot parses the hot-papers template.
func NewHot() *Hot {
	return &Hot{tmpl: mustParse("hot", hotTemplate)}
}

func (h *Hot) Name() string { return "hot" }

func (h *Hot) DefaultPolicy() ranking.Policy { return ranking.PolicyScoreThreshold }

func (h *Hot) Render(w io.Writer, set domain.RankedPaperSet, opts Options) error {
	data := hotData{Label: ranking.DefaultLabels.Hot}
	data.From, data.To = windowDays(opts.Window)
	if tier, ok := tierByKey(set, domain.TierHot); ok && tier.Label != "" {
		data.Label = tier.Label
	}

	filter := opts.Display
	for i, p := range allPapers(set) {
		data.Papers = append(data.Papers, newPaperView(i+1, p, &filter))
	}

	if err := h.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render hot: %w", err)
	}
	return nil
}
