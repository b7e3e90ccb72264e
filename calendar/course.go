package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// courseFeedItem mirrors the LMS feed's JSON shape.
type courseFeedItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Course    string     `json:"course"`
	Kind      string     `json:"kind"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	PostedAt  *time.Time `json:"posted_at,omitempty"`
	Progress  int        `json:"progress"`
	Completed bool       `json:"completed"`
}

// CourseFeedProvider reads assignments, quizzes, and announcements from
// an LMS JSON feed.
type CourseFeedProvider struct {
	url    string
	client *http.Client
}

func NewCourseFeedProvider(url string) *CourseFeedProvider {
	return &CourseFeedProvider{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *CourseFeedProvider) ListCourseItems(ctx context.Context) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build course feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch course feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch course feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read course feed: %w", err)
	}

	var feedItems []courseFeedItem
	if err := json.Unmarshal(body, &feedItems); err != nil {
		return nil, fmt.Errorf("decode course feed: %w", err)
	}

	items := make([]RawItem, 0, len(feedItems))
	for _, item := range feedItems {
		items = append(items, RawItem{
			ID:        item.ID,
			Title:     item.Title,
			Course:    item.Course,
			Kind:      item.Kind,
			DueAt:     item.DueAt,
			PostedAt:  item.PostedAt,
			Progress:  item.Progress,
			Completed: item.Completed,
		})
	}
	return items, nil
}
