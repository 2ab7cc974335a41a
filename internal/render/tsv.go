package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ranking"
)

// TSV writes one tab-separated line per paper: title, authors, pdf link and
// summary, tiers in order. Whitespace inside a field collapses to a single
// space so the columns stay intact.
type TSV struct{}

func NewTSV() *TSV { return &TSV{} }

func (t *TSV) Name() string { return "tsv" }

func (t *TSV) DefaultPolicy() ranking.Policy { return ranking.PolicyTagPriority }

func (t *TSV) Render(w io.Writer, set domain.RankedPaperSet, _ Options) error {
	bw := bufio.NewWriter(w)
	for _, p := range allPapers(set) {
		fields := []string{
			oneLine(p.Title),
			oneLine(strings.Join(p.Authors, ", ")),
			oneLine(p.Links[domain.LinkPDF]),
			oneLine(p.Summary),
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("render tsv: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("render tsv: %w", err)
	}
	return nil
}
