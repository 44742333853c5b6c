package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageHandleDataURI(t *testing.T) {
	h := NewImageHandle("image/png", []byte{0, 0, 0})
	assert.Equal(t, "data:image/png;base64,AAAA", h.DataURI())
}

func TestNewImageHandleCopiesData(t *testing.T) {
	raw := []byte{1, 2, 3}
	h := NewImageHandle("image/jpeg", raw)
	raw[0] = 9
	assert.Equal(t, byte(1), h.Data[0])
}

func TestSegmentJSONCarriesDataURI(t *testing.T) {
	img := NewImageHandle("image/png", []byte{0, 0, 0})
	seg := ScriptSegment{
		ID:             "s1",
		Label:          "Hook",
		NarrationText:  "Did you know?",
		VisualIdea:     "cat",
		GeneratedImage: &img,
		Citations:      []Citation{},
	}

	raw, err := json.Marshal(seg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "data:image/png;base64,AAAA", decoded["generated_image_url"])
	assert.Equal(t, "Hook", decoded["part"])
	assert.Equal(t, "cat", decoded["meme_idea"])
	assert.Equal(t, false, decoded["is_generating_image"])
	assert.Equal(t, []interface{}{}, decoded["grounding_chunks"])
}

func TestSessionCloneIsDeep(t *testing.T) {
	orig := &Session{
		ID: "abc",
		Segments: []ScriptSegment{{
			ID:        "s1",
			Citations: []Citation{{MatchedText: "x", Source: SourceRef{URI: "https://a"}}},
		}},
		ImageEdit: &ImageEditAttempt{Instruction: "add hat", InProgress: true},
	}

	clone := orig.Clone()
	clone.Segments[0].NarrationText = "changed"
	clone.Segments[0].Citations[0].MatchedText = "y"
	clone.ImageEdit.InProgress = false

	assert.Empty(t, orig.Segments[0].NarrationText)
	assert.Equal(t, "x", orig.Segments[0].Citations[0].MatchedText)
	assert.True(t, orig.ImageEdit.InProgress)
	assert.Nil(t, (*Session)(nil).Clone())
}

func TestFindSegmentAndLanguages(t *testing.T) {
	s := &Session{Segments: []ScriptSegment{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, s.FindSegment("b"))
	assert.Equal(t, -1, s.FindSegment("zzz"))

	assert.True(t, IsSupportedLanguage("ru-RU"))
	assert.False(t, IsSupportedLanguage("de-DE"))
}

func TestImageHandleJSONRoundTrip(t *testing.T) {
	seg := ScriptSegment{ID: "s1", Label: "Hook"}
	img := NewImageHandle("image/png", []byte{0, 0, 0})
	seg.GeneratedImage = &img

	b, err := json.Marshal(seg)
	require.NoError(t, err)

	var decoded ScriptSegment
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NotNil(t, decoded.GeneratedImage)
	assert.Equal(t, img, *decoded.GeneratedImage)
}

func TestParseDataURIRejectsMalformed(t *testing.T) {
	for _, uri := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:;base64,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,@@@",
	} {
		_, err := ParseDataURI(uri)
		assert.ErrorIs(t, err, ErrInvalidDataURI, uri)
	}
}

