package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
)

func paper(title string, subjects []string, downloadable bool, engagements ...domain.EngagementRecord) domain.EnrichedPaper {
	links := map[string]string{domain.LinkAbstract: "https://arxiv.org/abs/" + title}
	if downloadable {
		links[domain.LinkPDF] = "https://arxiv.org/pdf/" + title
	}
	return domain.EnrichedPaper{
		ListingEntry: domain.ListingEntry{Title: title, Subjects: subjects, Links: links},
		Engagements:  engagements,
	}
}

func rec(reposts, likes int) domain.EngagementRecord {
	return domain.EngagementRecord{RepostCount: reposts, LikeCount: likes}
}

func tierTitles(t domain.Tier) []string {
	out := make([]string, 0, len(t.Papers))
	for _, p := range t.Papers {
		out = append(out, p.Title)
	}
	return out
}

func TestPaperScoreQualifiesAtThreshold(t *testing.T) {
	t.Parallel()

	p := paper("hot", []string{"Machine Learning (cs.LG)"}, true, rec(30, 25))
	assert.Equal(t, 55, EngagementScore(p.Engagements[0]))
	assert.Equal(t, 55, PaperScore(p))

	set, err := Rank([]domain.EnrichedPaper{p}, Params{Policy: PolicyScoreThreshold, PaperScoreThreshold: 50})
	require.NoError(t, err)
	require.Len(t, set.Tiers, 1)
	assert.Equal(t, domain.TierHot, set.Tiers[0].Key)
	assert.Equal(t, []string{"hot"}, tierTitles(set.Tiers[0]))
}

func TestPaperScoreIsSumOfRecords(t *testing.T) {
	t.Parallel()

	p := paper("x", []string{"a (cs.AI)"}, true, rec(1, 2), rec(3, 4), rec(0, 0))
	assert.Equal(t, 10, PaperScore(p))
	assert.Equal(t, 4, TotalReposts(p))
	assert.Equal(t, 6, TotalLikes(p))
	assert.Equal(t, 0, PaperScore(paper("y", []string{"a (cs.AI)"}, true)))
}

func TestTagPriorityPartitionsAndOrders(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{
		paper("lg-2", []string{"Machine Learning (cs.LG)"}, true),
		paper("cv", []string{"Computer Vision and Pattern Recognition (cs.CV)"}, true),
		paper("ai", []string{"Artificial Intelligence (cs.AI)", "Machine Learning (cs.LG)"}, true),
		paper("ro", []string{"Robotics (cs.RO)"}, true),
		paper("nodl", []string{"Artificial Intelligence (cs.AI)"}, false),
		paper("lg-1", []string{"Machine Learning (cs.LG)"}, true),
	}
	set, err := Rank(papers, Params{
		Policy:         PolicyTagPriority,
		FavoriteTags:   []string{"cs.LG", "cs.AI"},
		UnfavoriteTags: []string{"cs.CV"},
	})
	require.NoError(t, err)
	require.Len(t, set.Tiers, 3)

	assert.Equal(t, domain.TierFavorite, set.Tiers[0].Key)
	assert.Equal(t, DefaultLabels.Favorite, set.Tiers[0].Label)
	assert.Equal(t, []string{"ai", "lg-2", "lg-1"}, tierTitles(set.Tiers[0]))
	assert.Equal(t, []string{"ro"}, tierTitles(set.Tiers[1]))
	assert.Equal(t, []string{"cv"}, tierTitles(set.Tiers[2]))
	assert.Equal(t, 5, set.Len(), "rows without a download link are excluded")
}

func TestTagPriorityMatchAnySubject(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{
		paper("cross", []string{"Robotics (cs.RO)", "Machine Learning (cs.LG)"}, true),
	}
	primary, err := Rank(papers, Params{Policy: PolicyTagPriority, FavoriteTags: []string{"cs.LG"}})
	require.NoError(t, err)
	assert.Empty(t, primary.Tiers[0].Papers)

	anyMatch, err := Rank(papers, Params{Policy: PolicyTagPriority, FavoriteTags: []string{"cs.LG"}, SubjectMatch: MatchAny})
	require.NoError(t, err)
	assert.Equal(t, []string{"cross"}, tierTitles(anyMatch.Tiers[0]))
}

func TestScoreThresholdStableDescending(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{
		paper("first-60", []string{"a (cs.LG)"}, true, rec(30, 30)),
		paper("low", []string{"a (cs.LG)"}, true, rec(1, 1)),
		paper("top", []string{"a (cs.LG)"}, true, rec(100, 0)),
		paper("second-60", []string{"a (cs.LG)"}, true, rec(10, 50)),
		paper("no-pdf", []string{"a (cs.LG)"}, false, rec(500, 500)),
	}
	set, err := Rank(papers, Params{Policy: PolicyScoreThreshold, PaperScoreThreshold: 50, Labels: Labels{Hot: "Trending"}})
	require.NoError(t, err)
	assert.Equal(t, "Trending", set.Tiers[0].Label)
	assert.Equal(t, []string{"top", "first-60", "second-60"}, tierTitles(set.Tiers[0]))
}

func TestScoreThresholdRequireFavorite(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{
		paper("fav", []string{"a (cs.LG)"}, true, rec(60, 0)),
		paper("other", []string{"a (cs.RO)"}, true, rec(90, 0)),
	}
	set, err := Rank(papers, Params{
		Policy:              PolicyScoreThreshold,
		PaperScoreThreshold: 50,
		FavoriteTags:        []string{"cs.LG"},
		RequireFavorite:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fav"}, tierTitles(set.Tiers[0]))
}

func TestRankRejectsMissingSubjects(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{
		paper("ok", []string{"a (cs.LG)"}, true),
		paper("broken", nil, true),
	}
	_, err := Rank(papers, Params{Policy: PolicyTagPriority})
	require.ErrorIs(t, err, domain.ErrDataIntegrity)

	var integrity *domain.DataIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, 1, integrity.Index)
	assert.Equal(t, "subjects", integrity.Field)
}

func TestRankRejectsNegativeCountsAndEmptyTitles(t *testing.T) {
	t.Parallel()

	_, err := Rank([]domain.EnrichedPaper{paper("neg", []string{"a (cs.LG)"}, true, rec(-1, 3))}, Params{Policy: PolicyScoreThreshold})
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)

	_, err = Rank([]domain.EnrichedPaper{paper(" ", []string{"a (cs.LG)"}, true)}, Params{Policy: PolicyTagPriority})
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	err := Params{Policy: PolicyTagPriority, FavoriteTags: []string{"cs.LG"}, UnfavoriteTags: []string{"cs.LG"}}.Validate()
	assert.Error(t, err)

	assert.Error(t, Params{Policy: "loudest"}.Validate())
	assert.Error(t, Params{Policy: PolicyTagPriority, SubjectMatch: "some"}.Validate())
	assert.NoError(t, Params{Policy: PolicyScoreThreshold, SubjectMatch: MatchAny}.Validate())
}

func TestRankDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	papers := []domain.EnrichedPaper{paper("p", []string{"a (cs.LG)"}, true, rec(1, 1))}
	set, err := Rank(papers, Params{Policy: PolicyTagPriority, FavoriteTags: []string{"cs.LG"}})
	require.NoError(t, err)

	set.Tiers[0].Papers[0].Subjects[0] = "changed"
	set.Tiers[0].Papers[0].Links[domain.LinkPDF] = ""
	assert.Equal(t, "a (cs.LG)", papers[0].Subjects[0])
	assert.NotEmpty(t, papers[0].Links[domain.LinkPDF])
}
