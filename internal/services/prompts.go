// internal/services/prompts.go
package services

import (
	"fmt"
	"strings"
	"text/template"
)

const codeFence = "```"

var scriptPromptTemplate = template.Must(template.New("script").Parse(
	`You are a YouTube Shorts scriptwriter. Create a viral script about '{{.Topic}}' in the language with code '{{.Language}}'.
The script should have a strong hook, 2-3 engaging points, and a clear call-to-action.
{{- if .TalkingPoints}}

Make sure the script covers these talking points:
{{- range .TalkingPoints}}
- {{.}}
{{- end}}
{{- end}}

**Crucial Instructions:**
1.  **Meta-Information:** For any important entity (person, company, product, event), you MUST provide meta-information to establish credibility and context. For example, if you mention "Tyler McVicker," you must add why he is reputable, like "(the reputable Valve insider who previously predicted Half-Life: Alyx)". This makes the script more informative and trustworthy.
2.  **Meme/Visual Idea:** For each part of the script, suggest a funny, relevant meme or a visual idea.
3.  **Language:** The entire "script" content must be in the target language: '{{.Language}}'. The other JSON fields ('part', 'memeIdea') should remain in English for structural consistency.

Structure your response as a JSON array string within a markdown code block like this:
{{.Fence}}json
[
  { "part": "Hook", "script": "The script for the hook in {{.Language}}...", "memeIdea": "A funny cat meme" },
  { "part": "Main Point 1", "script": "The script for the first point in {{.Language}} with meta-info...", "memeIdea": "Surprised Pikachu face" },
  { "part": "Call to Action", "script": "The script for the CTA in {{.Language}}...", "memeIdea": "Shut up and take my money meme" }
]
{{.Fence}}
Use Google Search to ensure all factual claims are accurate and up-to-date.`))

const imagePromptFormat = "Generate a funny, meme-style image for a YouTube short. The idea is: %s"

type scriptPromptData struct {
	Topic         string
	Language      string
	TalkingPoints []string
	Fence         string
}

func buildScriptPrompt(topic, language string, talkingPoints []string) (string, error) {
	var sb strings.Builder
	err := scriptPromptTemplate.Execute(&sb, scriptPromptData{
		Topic:         topic,
		Language:      language,
		TalkingPoints: talkingPoints,
		Fence:         codeFence,
	})
	if err != nil {
		return "", fmt.Errorf("渲染脚本提示词失败: %w", err)
	}
	return sb.String(), nil
}

func buildImagePrompt(visualIdea string) string {
	return fmt.Sprintf(imagePromptFormat, visualIdea)
}
