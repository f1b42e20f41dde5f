package collector

import (
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	wwrBaseURL         = "https://weworkremotely.com"
	wwrListingURL      = wwrBaseURL + "/remote-jobs"
	careerBoardTimeout = 10 * time.Second
)

// CareerBoardFetcher 抓取 We Work Remotely 职位列表页。
// 页面结构可能调整，此处基于当前的 DOM 结构做“尽力而为”的解析。
type CareerBoardFetcher struct{}

func (w *CareerBoardFetcher) Name() string {
	return "weworkremotely"
}

func (w *CareerBoardFetcher) Fetch() ([]Candidate, error) {
	log.Println("fetch We Work Remotely listings...")

	c := colly.NewCollector(
		colly.AllowedDomains("weworkremotely.com"),
		colly.UserAgent(redditUserAgent),
	)
	c.SetRequestTimeout(careerBoardTimeout)

	results := make([]Candidate, 0, 50)

	c.OnHTML("section.jobs li", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("span.title"))
		if title == "" {
			// 结构变化时退回：取条目里最长的链接文本当标题
			title = longestLinkText(e.DOM)
		}
		if title == "" {
			return
		}

		company := strings.TrimSpace(e.ChildText("span.company"))
		if company == "" {
			company = ExtractCompany(title)
		}

		region := strings.TrimSpace(e.ChildText("span.region"))
		if region == "" {
			region = "Remote"
		}

		href := e.ChildAttr("a[href^='/remote-jobs/']", "href")
		if href == "" {
			href = e.ChildAttr("a", "href")
		}
		link := href
		if link != "" && !strings.HasPrefix(link, "http") {
			link = wwrBaseURL + link
		}

		// 列表页没有正文，先用标题 + 公司拼一段描述，详情由后续轮次补全
		desc := title
		if company != "" {
			desc = title + " at " + company
		}

		results = append(results, Candidate{
			Title:          title,
			Company:        company,
			Location:       region,
			Type:           ClassifyType(title, desc, w.Name()),
			Category:       Categorize(title, desc),
			Description:    desc,
			ApplicationURL: link,
			Source:         w.Name(),
			SourceID:       sourceIDFromLink(link, title),
			SourceURL:      link,
		})
	})

	if err := c.Visit(wwrListingURL); err != nil {
		log.Printf("fetch We Work Remotely failed: %v", err)
		return nil, err
	}

	if len(results) == 0 {
		log.Println("weworkremotely: got 0 items")
	}
	return results, nil
}

// longestLinkText 从条目内取最长的链接文本，用于 DOM 结构变化时的兜底
func longestLinkText(sel *goquery.Selection) string {
	var best string
	sel.Find("a").Each(func(i int, a *goquery.Selection) {
		t := strings.TrimSpace(a.Text())
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}
