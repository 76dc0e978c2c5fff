package ops

import (
	"sort"

	"github.com/hpungsan/quill/internal/content"
)

// ProductView is a product with the values every page derives from it.
type ProductView struct {
	content.Product
	Category string        `json:"category"`
	Progress int           `json:"progress"`
	Badge    content.Badge `json:"badge"`
}

// ViewProduct derives category, progress and badge once for p.
func ViewProduct(p content.Product) ProductView {
	return ProductView{
		Product:  p,
		Category: content.CategoryLabel(p.Type),
		Progress: content.ProductProgress(p),
		Badge:    content.StatusBadge(p.Status),
	}
}

// ViewProducts maps ViewProduct over ps. The result is never nil.
func ViewProducts(ps []content.Product) []ProductView {
	out := make([]ProductView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ViewProduct(p))
	}
	return out
}

// FilterInput narrows a product list.
type FilterInput struct {
	Type   string // normalized before matching
	Bucket string // badge bucket ("draft", "in_progress", ...)
	Query  string // case-insensitive title substring
}

// FilterProducts returns the products matching every set field, in order.
func FilterProducts(ps []content.Product, f FilterInput) []content.Product {
	typ := ""
	if f.Type != "" {
		typ = content.NormalizeType(f.Type)
	}
	out := make([]content.Product, 0, len(ps))
	for _, p := range ps {
		if typ != "" && p.Type != typ {
			continue
		}
		if f.Bucket != "" && content.StatusBadge(p.Status).Bucket != f.Bucket {
			continue
		}
		if f.Query != "" && !containsFold(p.Title, f.Query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Count is one labelled tally.
type Count struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats summarizes a product list for the dashboard header.
type Stats struct {
	Total           int          `json:"total"`
	AverageProgress int          `json:"average_progress"`
	ByBucket        []Count      `json:"by_bucket"`
	ByCategory      []Count      `json:"by_category"`
	Latest          *ProductView `json:"latest,omitempty"` // most recently updated
}

// Summarize counts products by badge bucket and category.
func Summarize(ps []content.Product) Stats {
	stats := Stats{Total: len(ps), ByBucket: []Count{}, ByCategory: []Count{}}
	if len(ps) == 0 {
		return stats
	}

	buckets := map[string]*Count{}
	categories := map[string]*Count{}
	sum := 0
	var latest *content.Product
	for i := range ps {
		p := ps[i]
		badge := content.StatusBadge(p.Status)
		tally(buckets, badge.Bucket, bucketLabel(badge.Bucket))
		tally(categories, p.Type, content.CategoryLabel(p.Type))
		sum += content.ProductProgress(p)
		if latest == nil || p.UpdatedAt.After(latest.UpdatedAt) {
			latest = &ps[i]
		}
	}

	stats.AverageProgress = sum / len(ps)
	stats.ByBucket = sortedCounts(buckets)
	stats.ByCategory = sortedCounts(categories)
	view := ViewProduct(*latest)
	stats.Latest = &view
	return stats
}

func tally(m map[string]*Count, key, label string) {
	if c, ok := m[key]; ok {
		c.Count++
		return
	}
	m[key] = &Count{Key: key, Label: label, Count: 1}
}

// sortedCounts orders by count desc, then key.
func sortedCounts(m map[string]*Count) []Count {
	out := make([]Count, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func bucketLabel(bucket string) string {
	switch bucket {
	case content.BucketInProgress:
		return "In Progress"
	case content.BucketGenerating:
		return "Generating"
	case content.BucketComplete:
		return "Complete"
	case content.BucketPublished:
		return "Published"
	default:
		return "Draft"
	}
}
