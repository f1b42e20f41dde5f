package collector

import (
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const rssRequestTimeout = 10 * time.Second

// RSSFeedFetcher 抓取一个 RSS/Atom 订阅源。
// 同时注册 item（RSS 2.0）与 entry（Atom）两种结构，兼容大多数 feed。
type RSSFeedFetcher struct {
	FeedURL    string
	SourceName string
}

func (f *RSSFeedFetcher) Name() string {
	return f.SourceName
}

func (f *RSSFeedFetcher) Fetch() ([]Candidate, error) {
	log.Printf("fetch rss feed %s...", f.SourceName)

	c := colly.NewCollector(colly.UserAgent(redditUserAgent))
	c.SetRequestTimeout(rssRequestTimeout)

	results := make([]Candidate, 0, 50)

	// RSS 2.0: <item>
	c.OnXML("//item", func(e *colly.XMLElement) {
		if cand := f.parseEntry(
			e.ChildText("title"),
			e.ChildText("description"),
			e.ChildText("link"),
			e.ChildText("author"),
			e.ChildText("pubDate"),
		); cand != nil {
			results = append(results, *cand)
		}
	})

	// Atom: <entry>，link 在 href 属性上
	c.OnXML("//entry", func(e *colly.XMLElement) {
		desc := e.ChildText("summary")
		if desc == "" {
			desc = e.ChildText("content")
		}
		if cand := f.parseEntry(
			e.ChildText("title"),
			desc,
			e.ChildAttr("link", "href"),
			e.ChildText("author/name"),
			e.ChildText("updated"),
		); cand != nil {
			results = append(results, *cand)
		}
	})

	if err := c.Visit(f.FeedURL); err != nil {
		log.Printf("fetch rss feed %s failed: %v", f.SourceName, err)
		return nil, err
	}

	if len(results) == 0 {
		log.Printf("rss feed %s got 0 items", f.SourceName)
	}
	return results, nil
}

func (f *RSSFeedFetcher) parseEntry(title, description, link, author, published string) *Candidate {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	desc := TruncateDescription(StripHTML(description))
	if desc == "" {
		desc = title
	}

	company := strings.TrimSpace(author)
	if company == "" {
		company = ExtractCompany(title)
	}

	location := ExtractLocation(desc)
	if location == "" {
		location = "Remote"
	}

	return &Candidate{
		Title:          title,
		Company:        company,
		Location:       location,
		Type:           ClassifyType(title, desc, f.SourceName),
		Category:       Categorize(title, desc),
		Description:    desc,
		Deadline:       ParseDate(published),
		ApplicationURL: link,
		Source:         f.SourceName,
		SourceID:       sourceIDFromLink(link, title),
		SourceURL:      link,
	}
}

// sourceIDFromLink 用链接的最后一段作为源内 ID，链接缺失时退回标题 slug
func sourceIDFromLink(link, title string) string {
	if link != "" {
		if u, err := url.Parse(link); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if last := parts[len(parts)-1]; last != "" {
				return last
			}
		}
	}
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}
