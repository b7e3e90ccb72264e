package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseFeedProvider(t *testing.T) {
	feed := `[
		{"id": "a1", "title": "Problem Set 4", "course": "FIN 620", "kind": "assignment",
		 "due_at": "2026-03-03T23:59:00Z", "progress": 30},
		{"id": "q1", "title": "Quiz 2", "course": "MKT 510", "kind": "quiz",
		 "due_at": "2026-03-05T10:00:00Z", "progress": 0},
		{"id": "n1", "title": "Guest Speaker", "course": "FIN 620", "kind": "announcement",
		 "posted_at": "2026-03-01T08:00:00Z"}
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feed))
	}))
	defer server.Close()

	provider := NewCourseFeedProvider(server.URL)
	items, err := provider.ListCourseItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Problem Set 4", items[0].Title)
	assert.Equal(t, RawItemKindAssignment, items[0].Kind)
	require.NotNil(t, items[0].DueAt)
	assert.Equal(t, 30, items[0].Progress)

	assert.Equal(t, RawItemKindAnnouncement, items[2].Kind)
	assert.Nil(t, items[2].DueAt)
	require.NotNil(t, items[2].PostedAt)
}

func TestCourseFeedProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewCourseFeedProvider(server.URL)
	_, err := provider.ListCourseItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCourseFeedProvider_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login required</html>"))
	}))
	defer server.Close()

	provider := NewCourseFeedProvider(server.URL)
	_, err := provider.ListCourseItems(context.Background())
	assert.Error(t, err)
}
