package ops

import (
	"reflect"
	"testing"
	"time"

	"github.com/hpungsan/quill/internal/content"
)

func sampleProducts() []content.Product {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	return []content.Product{
		{ID: "1", Title: "Morning Habits", Type: "ebook", Status: "draft", Metadata: content.Metadata{"wordCount": 2000}, UpdatedAt: day(3)},
		{ID: "2", Title: "Launch post", Type: "blog", Status: "published", UpdatedAt: day(9)},
		{ID: "3", Title: "Evening habits", Type: "ebook", Status: "pending", UpdatedAt: day(1)},
		{ID: "4", Title: "Course outline", Type: "course", Status: "in_progress", UpdatedAt: day(2)},
	}
}

func TestSummarize(t *testing.T) {
	stats := Summarize(sampleProducts())

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	// (20 + 100 + 20 + 25) / 4
	if stats.AverageProgress != 41 {
		t.Errorf("AverageProgress = %d, want 41", stats.AverageProgress)
	}
	if stats.Latest == nil {
		t.Fatal("Latest is nil")
	}
	if stats.Latest.ID != "2" || stats.Latest.Category != "Blog Post" {
		t.Errorf("Latest = {%q %q}, want {2 Blog Post}", stats.Latest.ID, stats.Latest.Category)
	}

	wantBuckets := []Count{
		{Key: "in_progress", Label: "In Progress", Count: 2},
		{Key: "draft", Label: "Draft", Count: 1},
		{Key: "published", Label: "Published", Count: 1},
	}
	if !reflect.DeepEqual(stats.ByBucket, wantBuckets) {
		t.Errorf("ByBucket = %+v, want %+v", stats.ByBucket, wantBuckets)
	}
	if want := (Count{Key: "ebook", Label: "eBook", Count: 2}); stats.ByCategory[0] != want {
		t.Errorf("ByCategory[0] = %+v, want %+v", stats.ByCategory[0], want)
	}
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	if stats.Total != 0 || stats.ByBucket == nil || stats.Latest != nil {
		t.Errorf("Summarize(nil) = %+v, want zero total, empty buckets, no latest", stats)
	}
}

func TestFilterProducts(t *testing.T) {
	ps := sampleProducts()

	tests := []struct {
		name   string
		filter FilterInput
		want   []string
	}{
		{"none", FilterInput{}, []string{"1", "2", "3", "4"}},
		{"type alias", FilterInput{Type: "E-Book"}, []string{"1", "3"}},
		{"bucket", FilterInput{Bucket: "in_progress"}, []string{"3", "4"}},
		{"query and bucket", FilterInput{Query: "HABITS", Bucket: "draft"}, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, p := range FilterProducts(ps, tt.filter) {
				ids = append(ids, p.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestViewProducts(t *testing.T) {
	views := ViewProducts(sampleProducts())
	if len(views) != 4 {
		t.Fatalf("len(views) = %d, want 4", len(views))
	}
	if views[0].Progress != 20 {
		t.Errorf("views[0].Progress = %d, want 20", views[0].Progress)
	}
	if want := (content.Badge{Label: "Pending", Bucket: content.BucketInProgress}); views[2].Badge != want {
		t.Errorf("views[2].Badge = %+v, want %+v", views[2].Badge, want)
	}
	if ViewProducts(nil) == nil {
		t.Error("ViewProducts(nil) = nil, want empty slice")
	}
}
