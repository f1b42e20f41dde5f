package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	joobleBaseURL          = "https://jooble.org/api/"
	joobleTimeout          = 30 * time.Second
	joobleMaxResponseBytes = 4 << 20 // 4MB
)

// JoobleFetcher 通过 Jooble 搜索接口拉取职位（免费，需 API key）。
// 未配置 key 时自动停用：直接返回空结果，不计为错误。
type JoobleFetcher struct {
	APIKey string
}

func (j *JoobleFetcher) Name() string {
	return "jooble"
}

type joobleResp struct {
	Jobs []struct {
		ID       json.Number `json:"id"`
		Title    string      `json:"title"`
		Company  string      `json:"company"`
		Location string      `json:"location"`
		Snippet  string      `json:"snippet"`
		Salary   string      `json:"salary"`
		Link     string      `json:"link"`
		Updated  string      `json:"updated"`
	} `json:"jobs"`
}

func (j *JoobleFetcher) Fetch() ([]Candidate, error) {
	if j.APIKey == "" {
		log.Println("jooble: api key not configured, skipping")
		return nil, nil
	}

	log.Println("fetch Jooble...")

	payload := map[string]any{
		"keywords":   "internship OR job OR opportunity",
		"location":   "United States",
		"radius":     "25",
		"page":       1,
		"searchMode": 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jooble: marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, joobleBaseURL+j.APIKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jooble: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: joobleTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jooble: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jooble: unexpected status %d", resp.StatusCode)
	}

	var data joobleResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, joobleMaxResponseBytes)).Decode(&data); err != nil {
		return nil, fmt.Errorf("jooble: decode response: %w", err)
	}

	results := make([]Candidate, 0, len(data.Jobs))
	for _, job := range data.Jobs {
		if job.Title == "" {
			continue
		}

		desc := TruncateDescription(StripHTML(job.Snippet))
		if desc == "" {
			desc = job.Title
		}
		company := job.Company
		if company == "" {
			company = "Unknown Company"
		}
		location := job.Location
		if location == "" {
			location = "Unknown Location"
		}

		results = append(results, Candidate{
			Title:          job.Title,
			Company:        company,
			Location:       location,
			Type:           ClassifyType(job.Title, desc, j.Name()),
			Category:       Categorize(job.Title, desc),
			Description:    desc,
			Salary:         job.Salary,
			ApplicationURL: job.Link,
			Source:         j.Name(),
			SourceID:       job.ID.String(),
			SourceURL:      job.Link,
		})
	}

	if len(results) == 0 {
		log.Println("jooble: no items fetched")
	}
	return results, nil
}
