// internal/models/script.go
package models

// SourceRef 引用来源，原样透传
type SourceRef struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Citation 片段引用；MatchedText 必须是所属旁白的字面子串
type Citation struct {
	MatchedText string    `json:"text"`
	Source      SourceRef `json:"source"`
}

// ScriptSegment 脚本中的一个段落（Hook、Body、Call to Action 等）
type ScriptSegment struct {
	ID                        string       `json:"id"`
	Label                     string       `json:"part"`
	NarrationText             string       `json:"script"`
	VisualIdea                string       `json:"meme_idea"`
	GeneratedImage            *ImageHandle `json:"generated_image_url,omitempty"`
	ImageGenerationInProgress bool         `json:"is_generating_image"`
	Citations                 []Citation   `json:"grounding_chunks"`
}

// Clone 返回段落的独立副本
// ImageHandle 不可变，可以共享
func (s ScriptSegment) Clone() ScriptSegment {
	out := s
	out.Citations = make([]Citation, len(s.Citations))
	copy(out.Citations, s.Citations)
	return out
}

// Language 支持的旁白语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultLanguage 未指定语言时使用
const DefaultLanguage = "en-US"

// SupportedLanguages 前端可选的语言
var SupportedLanguages = []Language{
	{Code: "en-US", Name: "English"},
	{Code: "ru-RU", Name: "Русский"},
}

// IsSupportedLanguage 判断语言代码是否在支持列表中
func IsSupportedLanguage(code string) bool {
	for _, lang := range SupportedLanguages {
		if lang.Code == code {
			return true
		}
	}
	return false
}
