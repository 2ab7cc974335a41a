package artifact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"ArxivDigest/internal/domain"
)

// legacyTweet is the scraper record kept by older enrichment runs.
type legacyTweet struct {
	Name          string   `json:"name"`
	Username      string   `json:"username"`
	Datestamp     string   `json:"datestamp"`
	Timestamp     string   `json:"timestamp"`
	Link          string   `json:"link"`
	RetweetsCount looseInt `json:"retweets_count"`
	LikesCount    looseInt `json:"likes_count"`
	Tweet         string   `json:"tweet"`
}

func (t legacyTweet) toRecord() (domain.EngagementRecord, error) {
	rec := domain.EngagementRecord{
		AuthorName:   t.Name,
		AuthorHandle: t.Username,
		Link:         t.Link,
		RepostCount:  int(t.RetweetsCount),
		LikeCount:    int(t.LikesCount),
		Text:         t.Tweet,
	}
	stamp := strings.TrimSpace(t.Datestamp + " " + t.Timestamp)
	if stamp != "" {
		created, err := dateparse.ParseIn(stamp, time.UTC)
		if err != nil {
			return domain.EngagementRecord{}, fmt.Errorf("timestamp %q: %w", stamp, err)
		}
		rec.CreatedAt = created.UTC()
	}
	return rec, nil
}

// looseInt accepts 12, "12" and "" (as zero).
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("count must be a number: %w", err)
		}
		num = json.Number(strings.TrimSpace(s))
	}
	if num == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(num.String())
	if err != nil {
		return fmt.Errorf("count %q: %w", num, err)
	}
	*n = looseInt(v)
	return nil
}
