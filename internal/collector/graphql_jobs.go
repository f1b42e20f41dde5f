package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	graphqlJobsDefaultURL   = "https://api.graphql.jobs"
	graphqlJobsTimeout      = 30 * time.Second
	graphqlMaxResponseBytes = 4 << 20 // 4MB
)

// GraphQLJobsFetcher 从 GraphQL Jobs 接口拉取职位（免费，无需鉴权）。
// 可通过环境变量 GRAPHQL_JOBS_URL 覆盖端点，方便测试与镜像。
type GraphQLJobsFetcher struct{}

func (g *GraphQLJobsFetcher) Name() string {
	return "graphql_jobs"
}

const graphqlJobsQuery = `{
  jobs {
    id
    title
    company { name }
    locationNames
    description
    applyUrl
    postedAt
    tags { name }
  }
}`

type graphqlJobsResp struct {
	Data struct {
		Jobs []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Company struct {
				Name string `json:"name"`
			} `json:"company"`
			LocationNames string `json:"locationNames"`
			Description   string `json:"description"`
			ApplyURL      string `json:"applyUrl"`
			PostedAt      string `json:"postedAt"`
			Tags          []struct {
				Name string `json:"name"`
			} `json:"tags"`
		} `json:"jobs"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *GraphQLJobsFetcher) Fetch() ([]Candidate, error) {
	log.Println("fetch GraphQL Jobs...")

	apiURL := os.Getenv("GRAPHQL_JOBS_URL")
	if apiURL == "" {
		apiURL = graphqlJobsDefaultURL
	}

	body, err := json.Marshal(map[string]string{"query": graphqlJobsQuery})
	if err != nil {
		return nil, fmt.Errorf("graphql_jobs: marshal query: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("graphql_jobs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: graphqlJobsTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql_jobs: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphql_jobs: unexpected status %d", resp.StatusCode)
	}

	var data graphqlJobsResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, graphqlMaxResponseBytes)).Decode(&data); err != nil {
		return nil, fmt.Errorf("graphql_jobs: decode response: %w", err)
	}
	if len(data.Errors) > 0 {
		return nil, fmt.Errorf("graphql_jobs: api error: %s", data.Errors[0].Message)
	}

	results := make([]Candidate, 0, len(data.Data.Jobs))
	for _, job := range data.Data.Jobs {
		title := strings.TrimSpace(job.Title)
		if title == "" {
			continue
		}

		company := strings.TrimSpace(job.Company.Name)
		if company == "" {
			company = "Unknown Company"
		}
		location := strings.TrimSpace(job.LocationNames)
		if location == "" {
			location = "Remote"
		}
		category := "Technology"
		if len(job.Tags) > 0 && job.Tags[0].Name != "" {
			category = job.Tags[0].Name
		}

		desc := TruncateDescription(StripHTML(job.Description))
		if desc == "" {
			desc = title
		}

		results = append(results, Candidate{
			Title:          title,
			Company:        company,
			Location:       location,
			Type:           TypeJob, // 纯职位源
			Category:       category,
			Description:    desc,
			ApplicationURL: job.ApplyURL,
			Source:         g.Name(),
			SourceID:       job.ID,
			SourceURL:      job.ApplyURL,
			RawData:        map[string]any{"posted_at": job.PostedAt},
		})
	}

	if len(results) == 0 {
		log.Println("graphql_jobs: no items fetched")
	}
	return results, nil
}
