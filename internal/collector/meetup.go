package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	meetupBaseURL          = "https://api.meetup.com"
	meetupTimeout          = 30 * time.Second
	meetupMaxResponseBytes = 4 << 20 // 4MB
)

// MeetupFetcher 拉取 Meetup 活动（工作坊/会议类机会，需 API key）。
// 未配置 key 时自动停用。
type MeetupFetcher struct {
	APIKey string
}

func (m *MeetupFetcher) Name() string {
	return "meetup"
}

type meetupEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
	LocalDate   string `json:"local_date"`
	Group       struct {
		Name string `json:"name"`
	} `json:"group"`
	Venue struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"venue"`
}

func (m *MeetupFetcher) Fetch() ([]Candidate, error) {
	if m.APIKey == "" {
		log.Println("meetup: api key not configured, skipping")
		return nil, nil
	}

	log.Println("fetch Meetup events...")

	params := url.Values{}
	params.Set("key", m.APIKey)
	params.Set("text", "workshop OR conference OR tech OR career")
	params.Set("radius", "global")
	params.Set("order", "time")
	params.Set("status", "upcoming")
	params.Set("page", "100")

	client := &http.Client{Timeout: meetupTimeout}
	resp, err := client.Get(meetupBaseURL + "/find/events?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("meetup: fetch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meetup: unexpected status %d", resp.StatusCode)
	}

	var events []meetupEvent
	if err := json.NewDecoder(io.LimitReader(resp.Body, meetupMaxResponseBytes)).Decode(&events); err != nil {
		return nil, fmt.Errorf("meetup: decode events: %w", err)
	}

	results := make([]Candidate, 0, len(events))
	for _, ev := range events {
		if ev.Name == "" {
			continue
		}

		desc := TruncateDescription(StripHTML(ev.Description))
		if desc == "" {
			desc = ev.Name
		}

		organizer := ev.Group.Name
		if organizer == "" {
			organizer = "Unknown Group"
		}

		location := "Remote"
		if ev.Venue.City != "" {
			location = strings.TrimSuffix(ev.Venue.City+", "+ev.Venue.State, ", ")
		}

		results = append(results, Candidate{
			Title:          ev.Name,
			Company:        organizer,
			Location:       location,
			Type:           ClassifyType(ev.Name, desc, m.Name()),
			Category:       Categorize(ev.Name, desc),
			Description:    desc,
			Deadline:       ParseDate(ev.LocalDate), // 活动日期即报名截止
			ApplicationURL: ev.Link,
			Source:         m.Name(),
			SourceID:       ev.ID,
			SourceURL:      ev.Link,
		})
	}

	if len(results) == 0 {
		log.Println("meetup: no items fetched")
	}
	return results, nil
}
