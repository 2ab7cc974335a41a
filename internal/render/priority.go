package render

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

var priorityTemplate = strings.ReplaceAll(`# {{.Total}} Papers ({{.From}} ~ {{.To}})
{{range .Tiers}}
## {{len .Papers}} {{.Label}}
{{if .Tags}}{{.Tags}}
{{end}}{{range .Papers}}
### {{.Title}}
{{.Authors}}
abs: {{.Abstract}}
{{if .PDF}}pdf: {{.PDF}}
{{end}}{{.Subjects}}
FENCE
{{.Summary}}
FENCE

{{end}}{{end}}`, "FENCE", fence)

// Priority lists every tier under its own heading.
type Priority struct {
	tmpl *template.Template
}

type priorityData struct {
	Total int
	From  string
	To    string
	Tiers []tierView
}

type tierView struct {
	Label  string
	Tags   string
	Papers []paperView
}

// NewPriority parses the tiered template.
func NewPriority() *Priority {
	return &Priority{tmpl: mustParse("priority", priorityTemplate)}
}

func (p *Priority) Name() string { return "priority" }

func (p *Priority) DefaultPolicy() ranking.Policy { return ranking.PolicyTagPriority }

func (p *Priority) Render(w io.Writer, set domain.RankedPaperSet, opts Options) error {
	data := priorityData{Total: max(opts.Total, set.Len())}
	data.From, data.To = windowDays(opts.Window)

	for _, tier := range set.Tiers {
		view := tierView{Label: tier.Label}
		if tier.Key == domain.TierFavorite {
			view.Tags = sortedTags(opts.FavoriteTags)
		}
		for _, paper := range tier.Papers {
			view.Papers = append(view.Papers, newPaperView(0, paper, nil))
		}
		data.Tiers = append(data.Tiers, view)
	}

	if err := p.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render priority: %w", err)
	}
	return nil
}
