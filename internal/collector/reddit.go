package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	redditBaseURL          = "https://www.reddit.com"
	redditMaxItems         = 50
	redditMaxResponseBytes = 2 << 20 // 2MB
	redditClientTimeout    = 10 * time.Second
	redditUserAgent        = "OpportunityHubBot/1.0"
)

// RedditFetcher 通过 Reddit 的公开 listing JSON 接口抓取一个子版块的帖子。
// 子版块里招聘贴和求职/讨论贴混在一起，真正的过滤交给下游分类闸门。
type RedditFetcher struct {
	Subreddit string
}

func (r *RedditFetcher) Name() string {
	return "reddit_" + r.Subreddit
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
	FlairText  string  `json:"link_flair_text"`
}

func (r *RedditFetcher) Fetch() ([]Candidate, error) {
	log.Printf("fetch reddit r/%s...", r.Subreddit)

	apiURL := fmt.Sprintf("%s/r/%s/new.json?limit=%d", redditBaseURL, r.Subreddit, redditMaxItems)
	req, err := http.NewRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit %s: build request: %w", r.Subreddit, err)
	}
	// Reddit 对默认 UA 限流很狠，必须带自定义 UA
	req.Header.Set("User-Agent", redditUserAgent)

	client := &http.Client{Timeout: redditClientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit %s: fetch listing: %w", r.Subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit %s: unexpected status %d", r.Subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(io.LimitReader(resp.Body, redditMaxResponseBytes)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("reddit %s: decode listing: %w", r.Subreddit, err)
	}

	results := make([]Candidate, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if c := r.parsePost(child.Data); c != nil {
			results = append(results, *c)
		}
	}

	if len(results) == 0 {
		log.Printf("reddit r/%s: no items fetched", r.Subreddit)
	}
	return results, nil
}

// parsePost 将单个帖子规范化为候选记录；无标题的帖子直接丢弃
func (r *RedditFetcher) parsePost(p redditPost) *Candidate {
	if p.Title == "" {
		return nil
	}

	desc := TruncateDescription(StripHTML(p.SelfText))
	if desc == "" {
		desc = p.Title
	}

	location := ExtractLocation(desc)
	if location == "" {
		location = "Remote"
	}

	link := p.URL
	if link == "" {
		link = redditBaseURL + p.Permalink
	}

	source := r.Name()
	return &Candidate{
		Title:          p.Title,
		Company:        ExtractCompany(p.Title),
		Location:       location,
		Type:           ClassifyType(p.Title, desc, source),
		Category:       Categorize(p.Title, desc),
		Description:    desc,
		ApplicationURL: link,
		Source:         source,
		SourceID:       p.ID,
		SourceURL:      redditBaseURL + p.Permalink,
		RawData: map[string]any{
			"author":      p.Author,
			"flair":       p.FlairText,
			"created_utc": p.CreatedUTC,
		},
	}
}
