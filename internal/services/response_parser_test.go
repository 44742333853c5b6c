package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
)

func TestParseFencedJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want interface{}
	}{
		{
			name: "没有代码块",
			text: "Here is your script: [1,2,3]",
			want: nil,
		},
		{
			name: "数组",
			text: "Sure!\n```json\n[{\"part\":\"Hook\",\"script\":\"X is great\",\"memeIdea\":\"cat\"}]\n```\nEnjoy.",
			want: []interface{}{map[string]interface{}{"part": "Hook", "script": "X is great", "memeIdea": "cat"}},
		},
		{
			name: "只取第一个代码块",
			text: "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```",
			want: map[string]interface{}{"a": float64(1)},
		},
		{
			name: "非法 JSON",
			text: "```json\n[{\"part\": }\n```",
			want: nil,
		},
		{
			name: "空代码块",
			text: "```json\n```",
			want: nil,
		},
		{
			name: "未标记语言的代码块不算",
			text: "```\n[1]\n```",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFencedJSON(tt.text, quietLogger())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("解析结果不符 (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFencedJSONIsIdempotent(t *testing.T) {
	text := "```json\n[{\"part\":\"Hook\"},{\"part\":\"CTA\"}]\n```"
	first := ParseFencedJSON(text, quietLogger())
	second := ParseFencedJSON(text, quietLogger())
	assert.True(t, cmp.Equal(first, second))

	assert.Nil(t, ParseFencedJSON("no block", quietLogger()))
	assert.Nil(t, ParseFencedJSON("no block", quietLogger()))
}

func TestDecodeScriptParts(t *testing.T) {
	_, err := decodeScriptParts(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidScriptStructure)

	_, err = decodeScriptParts(map[string]interface{}{"part": "Hook"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidScriptStructure)

	parts, err := decodeScriptParts([]interface{}{
		map[string]interface{}{"part": "Hook", "script": "s", "memeIdea": "m"},
		"not an object",
		map[string]interface{}{"part": 7, "script": "only script"},
	})
	require.NoError(t, err)
	assert.Equal(t, []scriptPart{
		{Part: "Hook", Script: "s", MemeIdea: "m"},
		{},
		{Script: "only script"},
	}, parts)

	parts, err = decodeScriptParts([]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, parts)
}
