package collector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/CampusClimb/OpportunityHub/internal/config"
)

// BuildFetchers 按配置组装启用的数据源。
// 需要凭证的源即使启用，缺 key 时也会在 Fetch 里自动停用。
func BuildFetchers(cfg *config.Config) []Fetcher {
	fetchers := make([]Fetcher, 0, 8)

	for _, sub := range cfg.RedditSubreddits {
		f := &RedditFetcher{Subreddit: sub}
		if cfg.IsFetcherEnabled(f.Name()) {
			fetchers = append(fetchers, f)
		}
	}

	if cfg.IsFetcherEnabled("graphql_jobs") {
		fetchers = append(fetchers, &GraphQLJobsFetcher{})
	}
	if cfg.IsFetcherEnabled("jooble") {
		fetchers = append(fetchers, &JoobleFetcher{APIKey: cfg.JoobleAPIKey})
	}
	if cfg.IsFetcherEnabled("meetup") {
		fetchers = append(fetchers, &MeetupFetcher{APIKey: cfg.MeetupAPIKey})
	}
	if cfg.IsFetcherEnabled("weworkremotely") {
		fetchers = append(fetchers, &CareerBoardFetcher{})
	}

	// 自定义 RSS 订阅源：源名从域名推导
	for _, feed := range cfg.RSSFeeds {
		f := &RSSFeedFetcher{FeedURL: feed, SourceName: feedSourceName(feed)}
		if cfg.IsFetcherEnabled(f.Name()) {
			fetchers = append(fetchers, f)
		}
	}

	return fetchers
}

// feedSourceName 从 feed URL 推导稳定的源名，例如
// https://example.com/jobs.rss -> rss_example_com
func feedSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("rss_%s", strings.ReplaceAll(feedURL, "/", "_"))
	}
	host := strings.TrimPrefix(u.Host, "www.")
	return "rss_" + strings.ReplaceAll(strings.ReplaceAll(host, ".", "_"), "-", "_")
}
