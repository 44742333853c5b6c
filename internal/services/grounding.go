// internal/services/grounding.go
package services

import (
	"strings"

	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/models"
)

// AttachGrounding 为每段旁白挑出字面包含其文本的依据
// 区分大小写，不做裁剪，不去重；结果与 narrations 一一对应且元素非 nil
func AttachGrounding(narrations []string, entries []llm.GroundingEntry) [][]models.Citation {
	result := make([][]models.Citation, len(narrations))
	for i, narration := range narrations {
		citations := make([]models.Citation, 0)
		if narration != "" {
			for _, entry := range entries {
				// 空文本在 strings.Contains 下总是命中，必须先排除
				if entry.Text == "" || !strings.Contains(narration, entry.Text) {
					continue
				}
				citations = append(citations, models.Citation{
					MatchedText: entry.Text,
					Source:      entry.Source,
				})
			}
		}
		result[i] = citations
	}
	return result
}
