package content

import (
	"strings"
	"unicode"
)

// typePatterns maps substrings of raw type strings to canonical types.
// Order matters: the first matching entry wins, so "social post" is social
// and "ebook" is not mistaken for something containing "book" later on.
var typePatterns = []struct {
	needle string
	typ    string
}{
	{"brain_dump", TypeBrainDump},
	{"brain-dump", TypeBrainDump},
	{"brain dump", TypeBrainDump},
	{"social", TypeSocial},
	{"ebook", TypeEbook},
	{"e-book", TypeEbook},
	{"book", TypeEbook},
	{"blog", TypeBlog},
	{"article", TypeBlog},
	{"post", TypeBlog},
	{"video", TypeVideo},
	{"course", TypeCourse},
}

// NormalizeType lower-cases a raw type string and maps it into the closed set
// ebook, blog, social, video, course, brain_dump. Empty input becomes "other";
// anything unrecognised passes through lower-cased.
func NormalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return TypeOther
	}
	for _, p := range typePatterns {
		if strings.Contains(t, p.needle) {
			return p.typ
		}
	}
	return t
}

var categoryLabels = map[string]string{
	TypeEbook:     "eBook",
	TypeBlog:      "Blog Post",
	TypeCourse:    "Course",
	TypeSocial:    "Social Post",
	TypeVideo:     "Video",
	TypeBrainDump: "Brain Dump",
	TypeOther:     "Other",
}

// CategoryLabel returns the display category for a product type.
func CategoryLabel(typ string) string {
	if label, ok := categoryLabels[NormalizeType(typ)]; ok {
		return label
	}
	return titleCase(typ)
}

// targetWords is the draft word count that maps to 100% before capping.
var targetWords = map[string]int{
	TypeBlog:   1500,
	TypeEbook:  10000,
	TypeCourse: 5000,
}

const defaultTargetWords = 3000

// stepProgress maps known workflow steps to a completion percentage.
var stepProgress = map[string]int{
	"brain-dump":    30,
	"outline":       45,
	"ebook-writing": 60,
	"review":        75,
	"editing":       85,
	"final-review":  95,
}

// Draft progress bounds.
const (
	draftMin = 10
	draftMax = 80
)

// In-progress fallback when neither a step nor a word count is known.
// Kept below the lowest word band so progress never drops as words are added.
const inProgressDefault = 25

// Progress computes a 0-100 completion estimate from a product's status,
// type and metadata.
func Progress(status, typ string, meta Metadata) int {
	switch normalizeStatus(status) {
	case StatusPublished, StatusComplete:
		return 100
	case StatusDraft:
		return draftProgress(NormalizeType(typ), meta.WordCount())
	case StatusInProgress:
		if pct, ok := stepProgress[meta.WorkflowStep()]; ok {
			return pct
		}
		if wc := meta.WordCount(); wc > 0 {
			return wordBand(wc)
		}
		return inProgressDefault
	case StatusGenerating, StatusProcessing:
		return 40
	case StatusPending:
		return 20
	default:
		return 15
	}
}

// ProductProgress is Progress applied to a product.
func ProductProgress(p Product) int {
	return Progress(p.Status, p.Type, p.Metadata)
}

func draftProgress(typ string, words int) int {
	if words <= 0 {
		return 0
	}
	target, ok := targetWords[typ]
	if !ok {
		target = defaultTargetWords
	}
	pct := words * 100 / target
	return min(max(pct, draftMin), draftMax)
}

func wordBand(words int) int {
	switch {
	case words < 500:
		return 30
	case words < 2000:
		return 45
	case words < 5000:
		return 60
	case words < 10000:
		return 75
	default:
		return 85
	}
}

// Badge buckets, used for badge colors.
const (
	BucketDraft      = "draft"
	BucketInProgress = "in_progress"
	BucketGenerating = "generating"
	BucketComplete   = "complete"
	BucketPublished  = "published"
)

// Badge is the display label and color bucket for a status.
type Badge struct {
	Label  string `json:"label"`
	Bucket string `json:"bucket"`
}

var badges = map[string]Badge{
	StatusDraft:      {"Draft", BucketDraft},
	StatusInProgress: {"In Progress", BucketInProgress},
	StatusPending:    {"Pending", BucketInProgress},
	StatusProcessing: {"Processing", BucketGenerating},
	StatusGenerating: {"Generating", BucketGenerating},
	StatusComplete:   {"Complete", BucketComplete},
	StatusPublished:  {"Published", BucketPublished},
	StatusAnalyzed:   {"Analyzed", BucketComplete},
}

// StatusBadge maps any status to exactly one badge. Unknown statuses keep a
// title-cased label in the draft bucket; empty status is Draft.
func StatusBadge(status string) Badge {
	s := normalizeStatus(status)
	if s == "" {
		return badges[StatusDraft]
	}
	if b, ok := badges[s]; ok {
		return b
	}
	return Badge{Label: titleCase(s), Bucket: BucketDraft}
}

// normalizeStatus lower-cases and turns "in progress"/"in-progress" into in_progress.
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

// titleCase turns "needs_review" into "Needs Review".
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
