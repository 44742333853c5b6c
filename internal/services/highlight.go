// internal/services/highlight.go
package services

import (
	"sort"
	"strings"

	"github.com/Corphon/ShortsStudio/internal/models"
)

// TextSpan 旁白中的一段，Source 不为空时表示带引用的高亮
type TextSpan struct {
	Text   string            `json:"text"`
	Source *models.SourceRef `json:"source,omitempty"`
}

type claimedRange struct {
	start, end int
	source     models.SourceRef
}

// PlanHighlights 把旁白切成普通片段和引用片段
// 重叠时较长的片段优先，等长时先出现的引用优先；每个未被占用的出现位置都会高亮
// 所有片段按顺序拼接后等于原文
func PlanHighlights(narration string, citations []models.Citation) []TextSpan {
	if narration == "" {
		return []TextSpan{}
	}

	order := make([]int, len(citations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(citations[order[a]].MatchedText) > len(citations[order[b]].MatchedText)
	})

	taken := make([]bool, len(narration))
	var ranges []claimedRange

	for _, ci := range order {
		snippet := citations[ci].MatchedText
		if snippet == "" {
			continue
		}
		for offset := 0; offset+len(snippet) <= len(narration); {
			idx := strings.Index(narration[offset:], snippet)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(snippet)
			if isFree(taken, start, end) {
				for i := start; i < end; i++ {
					taken[i] = true
				}
				ranges = append(ranges, claimedRange{start: start, end: end, source: citations[ci].Source})
				offset = end
				continue
			}
			offset = start + 1
		}
	}

	sort.Slice(ranges, func(a, b int) bool { return ranges[a].start < ranges[b].start })

	spans := make([]TextSpan, 0, 2*len(ranges)+1)
	cursor := 0
	for _, r := range ranges {
		if r.start > cursor {
			spans = append(spans, TextSpan{Text: narration[cursor:r.start]})
		}
		source := r.source
		spans = append(spans, TextSpan{Text: narration[r.start:r.end], Source: &source})
		cursor = r.end
	}
	if cursor < len(narration) {
		spans = append(spans, TextSpan{Text: narration[cursor:]})
	}
	return spans
}

func isFree(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return false
		}
	}
	return true
}
