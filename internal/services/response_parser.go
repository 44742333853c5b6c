// internal/services/response_parser.go
package services

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

// 第一个 ```json 代码块，惰性匹配内容
var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ParseFencedJSON 从模型输出中取出第一个 json 代码块并解码
// 找不到代码块或内容不是合法 JSON 时返回 nil，只向 logger 记录警告
func ParseFencedJSON(text string, logger *utils.Logger) interface{} {
	if logger == nil {
		logger = utils.GetLogger()
	}

	match := fencedJSONPattern.FindStringSubmatch(text)
	if match == nil || match[1] == "" {
		logger.Warn("No JSON block found in response", map[string]interface{}{
			"response_length": len(text),
		})
		return nil
	}

	payload := strings.TrimPrefix(match[1], "\ufeff")

	var value interface{}
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		logger.Warn("Failed to parse JSON from response", map[string]interface{}{
			"error":          err.Error(),
			"payload_length": len(payload),
		})
		return nil
	}
	return value
}

// scriptPart 模型返回的单个脚本段落
type scriptPart struct {
	Part     string
	Script   string
	MemeIdea string
}

// decodeScriptParts 校验解析结果必须是数组
// 数组元素不是对象时得到空段落，字段不是字符串时读作空串
func decodeScriptParts(value interface{}) ([]scriptPart, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, apperrors.ErrInvalidScriptStructure
	}

	parts := make([]scriptPart, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		parts[i] = scriptPart{
			Part:     stringField(obj, "part"),
			Script:   stringField(obj, "script"),
			MemeIdea: stringField(obj, "memeIdea"),
		}
	}
	return parts, nil
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}
