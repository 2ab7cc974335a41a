package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

// Options carries everything a style needs besides the ranked papers.
type Options struct {
	Window domain.CrawlWindow
	// Total is the number of papers before ranking dropped any.
	Total        int
	Markup       bool
	FavoriteTags []string
	Display      ranking.DisplayFilter
}

// Renderer turns a ranked set into one textual document style.
type Renderer interface {
	Name() string
	DefaultPolicy() ranking.Policy
	Render(w io.Writer, set domain.RankedPaperSet, opts Options) error
}

// Registry keeps a mapping from style names to renderers.
type Registry struct {
	renderers map[string]Renderer
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: map[string]Renderer{}}
}

// DefaultRegistry registers every built-in style.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewDaily())
	reg.Register(NewPriority())
	reg.Register(NewHot())
	reg.Register(NewBlog())
	reg.Register(NewTSV())
	return reg
}

// Register adds or replaces a renderer.
func (r *Registry) Register(renderer Renderer) {
	if r.renderers == nil {
		r.renderers = map[string]Renderer{}
	}
	r.renderers[renderer.Name()] = renderer
}

// Resolve returns a renderer by style name or an error if it is absent.
func (r *Registry) Resolve(name string) (Renderer, error) {
	if renderer, ok := r.renderers[name]; ok {
		return renderer, nil
	}
	return nil, fmt.Errorf("render style %s is not registered", name)
}

// Names lists registered styles alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// paperView is the template-facing shape of one paper.
type paperView struct {
	No       int
	Title    string
	Authors  string
	Abstract string
	PDF      string
	Subjects string
	Summary  string
	Reposts  string
	Likes    string
	Score    int
	Mentions []mentionView
}

type mentionView struct {
	Name    string
	Handle  string
	Reposts string
	Likes   string
	Created string
	Link    string
	Quote   string
}

func newPaperView(no int, p domain.EnrichedPaper, filter *ranking.DisplayFilter) paperView {
	v := paperView{
		No:       no,
		Title:    p.Title,
		Authors:  strings.Join(p.Authors, ", "),
		Abstract: p.Links[domain.LinkAbstract],
		PDF:      p.Links[domain.LinkPDF],
		Subjects: strings.Join(p.SubjectCodes(), " | "),
		Summary:  oneLine(p.Summary),
		Reposts:  humanize.Comma(int64(ranking.TotalReposts(p))),
		Likes:    humanize.Comma(int64(ranking.TotalLikes(p))),
		Score:    ranking.PaperScore(p),
	}
	if filter != nil {
		for _, r := range filter.Select(p.Engagements) {
			v.Mentions = append(v.Mentions, newMentionView(r))
		}
	}
	return v
}

func newMentionView(r domain.EngagementRecord) mentionView {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return mentionView{
		Name:    r.AuthorName,
		Handle:  r.AuthorHandle,
		Reposts: humanize.Comma(int64(r.RepostCount)),
		Likes:   humanize.Comma(int64(r.LikeCount)),
		Created: created,
		Link:    r.Link,
		Quote:   quote(r.Text),
	}
}

// windowDays returns the first and last day a window includes.
func windowDays(w domain.CrawlWindow) (string, string) {
	if w.Since.IsZero() || w.Until.IsZero() {
		return "", ""
	}
	return w.Until.AddDays(1).String(), w.Since.AddDays(-1).String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// quote renders text as a markdown block quote; lines starting with '#' are
// escaped so they do not become headings.
func quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			line = `\` + line
		}
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

func sortedTags(tags []string) string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return strings.Join(out, " | ")
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

func tierByKey(set domain.RankedPaperSet, key domain.TierKey) (domain.Tier, bool) {
	for _, t := range set.Tiers {
		if t.Key == key {
			return t, true
		}
	}
	return domain.Tier{}, false
}

// allPapers flattens tiers in order.
func allPapers(set domain.RankedPaperSet) []domain.EnrichedPaper {
	var out []domain.EnrichedPaper
	for _, t := range set.Tiers {
		out = append(out, t.Papers...)
	}
	return out
}
