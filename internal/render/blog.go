package render

import (
	"fmt"
	"io"
	"sort"
	"text/template"

	"gopkg.in/yaml.v3"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

const blogTemplate = `---
{{.FrontMatter}}---

{{len .Papers}} papers got the most attention between {{.From}} and {{.To}}.
{{range .Papers}}
## {{.No}}. [{{.Title}}]({{.Abstract}})

*{{.Authors}}*

{{.Subjects}} · {{.Reposts}} reposts · {{.Likes}} likes{{if .PDF}} · [pdf]({{.PDF}}){{end}}

> {{.Summary}}
{{range .Mentions}}
[@{{.Handle}}]({{.Link}}) ({{.Reposts}} reposts, {{.Likes}} likes)

{{.Quote}}
{{end}}{{end}}`

// Blog is a hot-papers post with YAML front matter for static site builders.
type Blog struct {
	tmpl *template.Template
}

type blogFrontMatter struct {
	Title  string   `yaml:"title"`
	Date   string   `yaml:"date"`
	Tags   []string `yaml:"tags"`
	Papers int      `yaml:"papers"`
}

type blogData struct {
	FrontMatter string
	From        string
	To          string
	Papers      []paperView
}

// NewBlog parses the blog template.
func NewBlog() *Blog {
	return &Blog{tmpl: mustParse("blog", blogTemplate)}
}

func (b *Blog) Name() string { return "blog" }

func (b *Blog) DefaultPolicy() ranking.Policy { return ranking.PolicyScoreThreshold }

func (b *Blog) Render(w io.Writer, set domain.RankedPaperSet, opts Options) error {
	data := blogData{}
	data.From, data.To = windowDays(opts.Window)

	filter := opts.Display
	papers := allPapers(set)
	subjects := map[string]struct{}{}
	for i, p := range papers {
		data.Papers = append(data.Papers, newPaperView(i+1, p, &filter))
		for _, code := range p.SubjectCodes() {
			subjects[code] = struct{}{}
		}
	}

	fm := blogFrontMatter{
		Title:  fmt.Sprintf("Hot arXiv papers %s ~ %s", data.From, data.To),
		Date:   opts.Window.Since.String(),
		Tags:   []string{"arxiv"},
		Papers: len(papers),
	}
	codes := make([]string, 0, len(subjects))
	for code := range subjects {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	fm.Tags = append(fm.Tags, codes...)

	raw, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("render blog front matter: %w", err)
	}
	data.FrontMatter = string(raw)

	if err := b.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render blog: %w", err)
	}
	return nil
}
