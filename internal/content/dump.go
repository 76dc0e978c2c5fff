package content

import (
	"regexp"
	"strings"
)

// headerPattern matches markdown headers (h1-h6) at the start of a line.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+([^\n]+?)[ \t]*$`)

// fencePattern matches fenced code block delimiters at the start of a line.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

// linkPattern matches bare URLs and markdown link targets.
var linkPattern = regexp.MustCompile(`https?://[^\s)\]>"']+`)

// DumpStats summarizes raw brain dump text. It fills the metadata counts
// stored with each brain dump and the outline shown before analysis.
type DumpStats struct {
	WordCount int      `json:"wordCount"`
	LinkCount int      `json:"linkCount"`
	Outline   []string `json:"outline,omitempty"`
}

// AnalyzeDump counts words and links and collects markdown headings.
// Headings inside fenced code blocks are ignored.
func AnalyzeDump(text string) DumpStats {
	stats := DumpStats{
		WordCount: len(strings.Fields(text)),
		LinkCount: len(linkPattern.FindAllString(text, -1)),
	}

	fences := fencedRanges(text)
	for _, m := range headerPattern.FindAllStringSubmatchIndex(text, -1) {
		if insideFence(m[0], fences) {
			continue
		}
		stats.Outline = append(stats.Outline, strings.TrimSpace(text[m[4]:m[5]]))
	}
	return stats
}

// Apply writes the stats into metadata under the keys the dashboard reads.
func (s DumpStats) Apply(meta Metadata) Metadata {
	out := meta.Clone()
	out["wordCount"] = s.WordCount
	out["linkCount"] = s.LinkCount
	if len(s.Outline) > 0 {
		out["outline"] = s.Outline
	} else {
		delete(out, "outline")
	}
	return out
}

// fencedRanges returns byte ranges [start, end) of fenced code blocks.
// A closing fence must use the same character and be at least as long.
func fencedRanges(text string) [][2]int {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}

	var ranges [][2]int
	var openChar byte
	var openLen, openStart int
	inFence := false

	for _, match := range matches {
		fence := text[match[2]:match[3]]
		if !inFence {
			openChar, openLen, openStart = fence[0], len(fence), match[0]
			inFence = true
		} else if fence[0] == openChar && len(fence) >= openLen {
			ranges = append(ranges, [2]int{openStart, match[1]})
			inFence = false
		}
	}
	return ranges
}

func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}
