package content

import "testing"

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ebook", TypeEbook},
		{"E-Book", TypeEbook},
		{"  EBOOK  ", TypeEbook},
		{"Book", TypeEbook},
		{"blog", TypeBlog},
		{"Blog Post", TypeBlog},
		{"article", TypeBlog},
		{"social post", TypeSocial},
		{"Social", TypeSocial},
		{"video script", TypeVideo},
		{"online course", TypeCourse},
		{"brain_dump", TypeBrainDump},
		{"Brain Dump", TypeBrainDump},
		{"", TypeOther},
		{"   ", TypeOther},
		{"Podcast", "podcast"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeType(tt.input); got != tt.want {
				t.Errorf("NormalizeType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCategoryLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ebook", "eBook"},
		{"E-Book", "eBook"},
		{"blog", "Blog Post"},
		{"course", "Course"},
		{"social", "Social Post"},
		{"video", "Video"},
		{"brain_dump", "Brain Dump"},
		{"", "Other"},
		{"podcast", "Podcast"},
		{"case_study", "Case Study"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CategoryLabel(tt.input); got != tt.want {
				t.Errorf("CategoryLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProgress_FinishedIsAlways100(t *testing.T) {
	for _, status := range []string{StatusPublished, StatusComplete, "Published", "COMPLETE"} {
		for _, typ := range []string{TypeEbook, TypeBlog, TypeCourse, "", "podcast"} {
			for _, meta := range []Metadata{nil, {"wordCount": 0}, {"wordCount": 50000, "workflow_step": "outline"}} {
				if got := Progress(status, typ, meta); got != 100 {
					t.Errorf("Progress(%s, %s, %v) = %d, want 100", status, typ, meta, got)
				}
			}
		}
	}
}

func TestProgress_Draft(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		words int
		want  int
	}{
		{"no words", TypeEbook, 0, 0},
		{"few words floored at 10", TypeEbook, 100, 10},
		{"ebook 2000 of 10000", TypeEbook, 2000, 20},
		{"ebook capped at 80", TypeEbook, 50000, 80},
		{"blog 750 of 1500", TypeBlog, 750, 50},
		{"blog capped", TypeBlog, 1500, 80},
		{"course 2500 of 5000", TypeCourse, 2500, 50},
		{"other uses 3000 target", "podcast", 1500, 50},
		{"empty type uses 3000 target", "", 600, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(StatusDraft, tt.typ, Metadata{"wordCount": tt.words}); got != tt.want {
				t.Errorf("Progress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgress_DraftZeroWordsIsZero(t *testing.T) {
	for _, typ := range []string{TypeEbook, TypeBlog, TypeCourse, TypeSocial, ""} {
		for _, meta := range []Metadata{{"wordCount": 0}, nil} {
			if got := Progress(StatusDraft, typ, meta); got != 0 {
				t.Errorf("Progress(draft, %q, %v) = %d, want 0", typ, meta, got)
			}
		}
	}
}

func TestProgress_MonotonicInWordCount(t *testing.T) {
	statuses := []string{StatusDraft, StatusInProgress, StatusPending, StatusGenerating, StatusComplete, "mystery"}
	types := []string{TypeEbook, TypeBlog, TypeCourse, TypeVideo, ""}

	for _, status := range statuses {
		for _, typ := range types {
			prev := -1
			for words := 0; words <= 60000; words += 125 {
				got := Progress(status, typ, Metadata{"wordCount": words})
				if got < prev {
					t.Fatalf("progress decreased for status=%s type=%s at %d words: %d < %d", status, typ, words, got, prev)
				}
				if got < 0 || got > 100 {
					t.Fatalf("progress out of range: %d", got)
				}
				prev = got
			}
		}
	}
}

func TestProgress_InProgress(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want int
	}{
		{"brain-dump step", Metadata{"workflow_step": "brain-dump"}, 30},
		{"outline step", Metadata{"workflow_step": "outline"}, 45},
		{"ebook-writing step", Metadata{"workflowStep": "ebook-writing"}, 60},
		{"review step", Metadata{"workflow_step": "review"}, 75},
		{"editing step", Metadata{"workflow_step": "editing"}, 85},
		{"final-review step", Metadata{"workflow_step": "final-review", "wordCount": 10}, 95},
		{"unknown step falls to words", Metadata{"workflow_step": "mystery", "wordCount": 3000}, 60},
		{"words under 500", Metadata{"wordCount": 499}, 30},
		{"words under 2000", Metadata{"wordCount": 1999}, 45},
		{"words under 10000", Metadata{"wordCount": 9000}, 75},
		{"many words", Metadata{"word_count": 20000}, 85},
		{"nothing known", nil, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(StatusInProgress, TypeEbook, tt.meta); got != tt.want {
				t.Errorf("Progress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgress_OtherStatuses(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{StatusGenerating, 40},
		{StatusProcessing, 40},
		{StatusPending, 20},
		{"archived", 15},
		{"", 15},
		{"In Progress", 25},
	}
	for _, tt := range tests {
		if got := Progress(tt.status, TypeEbook, nil); got != tt.want {
			t.Errorf("Progress(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestProductProgress_EbookDraftScenario(t *testing.T) {
	p := Product{Type: "ebook", Status: "draft", Metadata: Metadata{"wordCount": 2000}}

	if label := CategoryLabel(p.Type); label != "eBook" {
		t.Errorf("CategoryLabel = %q, want eBook", label)
	}
	if got := ProductProgress(p); got != 20 {
		t.Errorf("ProductProgress = %d, want 20", got)
	}
}

func TestStatusBadge(t *testing.T) {
	tests := []struct {
		status string
		want   Badge
	}{
		{"draft", Badge{"Draft", BucketDraft}},
		{"in_progress", Badge{"In Progress", BucketInProgress}},
		{"In Progress", Badge{"In Progress", BucketInProgress}},
		{"pending", Badge{"Pending", BucketInProgress}},
		{"processing", Badge{"Processing", BucketGenerating}},
		{"generating", Badge{"Generating", BucketGenerating}},
		{"complete", Badge{"Complete", BucketComplete}},
		{"published", Badge{"Published", BucketPublished}},
		{"analyzed", Badge{"Analyzed", BucketComplete}},
		{"", Badge{"Draft", BucketDraft}},
		{"needs_review", Badge{"Needs Review", BucketDraft}},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := StatusBadge(tt.status); got != tt.want {
				t.Errorf("StatusBadge(%q) = %+v, want %+v", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusBadge_TotalAndPure(t *testing.T) {
	inputs := []string{"draft", "x", "???", "  ", "in-progress", "PUBLISHED", "ünïcode"}
	for _, s := range inputs {
		first := StatusBadge(s)
		second := StatusBadge(s)
		if first != second {
			t.Errorf("StatusBadge(%q) not stable: %+v then %+v", s, first, second)
		}
		if first.Label == "" || first.Bucket == "" {
			t.Errorf("StatusBadge(%q) = %+v, want label and bucket", s, first)
		}
	}
}
