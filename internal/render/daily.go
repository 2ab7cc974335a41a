package render

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

const fence = "```"

var dailyMarkup = strings.ReplaceAll(`# {{.Total}} Papers ({{.From}} ~ {{.To}})

## {{len .Prioritized}} Prioritized Papers
{{.Tags}}
{{range .Prioritized}}{{template "paper" .}}{{end}}
## {{len .Others}} Other Papers
{{range .Others}}{{template "paper" .}}{{end}}
{{define "paper"}}
### {{.Title}}
{{.Authors}}
abs: {{.Abstract}}
{{if .PDF}}pdf: {{.PDF}}
{{end}}{{.Subjects}}
FENCE
{{.Summary}}
FENCE

{{end}}`, "FENCE", fence)

const dailyPlain = `{{.Total}} Papers ({{.From}} ~ {{.To}})
{{len .Prioritized}} Prioritized Papers
{{.Tags}}
{{range .Prioritized}}{{template "paper" .}}{{end}}
{{len .Others}} Other Papers
{{range .Others}}{{template "paper" .}}{{end}}
{{define "paper"}}
{{.Title}}

{{.Authors}}
abs: {{.Abstract}}
{{if .PDF}}pdf: {{.PDF}}
{{end}}{{.Subjects}}

{{.Summary}}

{{end}}`

// Daily is the plain digest: favorite-subject papers first, then the rest.
type Daily struct {
	markup *template.Template
	plain  *template.Template
}

type dailyData struct {
	Total       int
	From        string
	To          string
	Tags        string
	Prioritized []paperView
	Others      []paperView
}

// NewDaily parses the daily templates.
func NewDaily() *Daily {
	return &Daily{
		markup: mustParse("daily", dailyMarkup),
		plain:  mustParse("daily-plain", dailyPlain),
	}
}

func (d *Daily) Name() string { return "daily" }

func (d *Daily) DefaultPolicy() ranking.Policy { return ranking.PolicyTagPriority }

// Render writes the favorite tier as prioritized papers and every other tier
// after it.
func (d *Daily) Render(w io.Writer, set domain.RankedPaperSet, opts Options) error {
	data := dailyData{Total: max(opts.Total, set.Len()), Tags: sortedTags(opts.FavoriteTags)}
	data.From, data.To = windowDays(opts.Window)

	for _, tier := range set.Tiers {
		for _, p := range tier.Papers {
			view := newPaperView(0, p, nil)
			if tier.Key == domain.TierFavorite {
				data.Prioritized = append(data.Prioritized, view)
			} else {
				data.Others = append(data.Others, view)
			}
		}
	}
	tmpl := d.plain
	if opts.Markup {
		tmpl = d.markup
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render daily: %w", err)
	}
	return nil
}
