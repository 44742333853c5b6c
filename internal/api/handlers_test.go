package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/llm/llmtest"
	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/services"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

const twoPartScript = "Here you go!\n```json\n[" +
	`{"part":"Hook","script":"Cats sleep 16 hours a day","memeIdea":"sleepy cat"},` +
	`{"part":"Call to Action","script":"Subscribe for more","memeIdea":"fail meme"}` +
	"]\n```"

// scriptBackend 搜索请求返回脚本，图片请求按描述返回结果
func scriptBackend(req llm.ContentRequest) (*llm.ContentResponse, error) {
	if req.EnableSearch {
		return &llm.ContentResponse{
			Text: twoPartScript,
			Grounding: []llm.GroundingEntry{
				{Text: "16 hours", Source: models.SourceRef{Title: "Vet", URI: "https://vet.test"}},
			},
		}, nil
	}
	if strings.HasSuffix(req.Parts[len(req.Parts)-1].Text, "fail meme") {
		return &llm.ContentResponse{Text: "no image today"}, nil
	}
	return llmtest.ImageResponse("image/png", []byte{0, 0, 0}), nil
}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	fake    *llmtest.FakeProvider
	metrics *utils.MetricsCollector
}

func newTestEnv(t *testing.T, opts HandlerOptions) *testEnv {
	t.Helper()
	fake := &llmtest.FakeProvider{Handler: func(_ context.Context, req llm.ContentRequest) (*llm.ContentResponse, error) {
		return scriptBackend(req)
	}}
	logger := utils.NewLoggerFromZap(zap.NewNop())
	metrics := utils.NewMetricsCollector()

	gateway, err := services.NewGateway(fake, services.GatewayOptions{Metrics: metrics, Logger: logger})
	require.NoError(t, err)
	hub := NewWebSocketManager(logger)
	sessions := services.NewSessionService(gateway, services.SessionServiceOptions{
		TTL:       time.Minute,
		Publisher: hub,
		Metrics:   metrics,
		Logger:    logger,
	})
	h := NewHandler(sessions, gateway, hub, metrics, logger, opts)
	t.Cleanup(hub.Stop)

	return &testEnv{
		router:  NewRouter(h, RouterOptions{}),
		handler: h,
		fake:    fake,
		metrics: metrics,
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

type segmentJSON struct {
	ID         string              `json:"id"`
	Part       string              `json:"part"`
	Script     string              `json:"script"`
	MemeIdea   string              `json:"meme_idea"`
	Image      string              `json:"generated_image_url"`
	Generating bool                `json:"is_generating_image"`
	Citations  []models.Citation   `json:"grounding_chunks"`
	Highlights []services.TextSpan `json:"highlights"`
}

type sessionJSON struct {
	ID               string        `json:"id"`
	Topic            string        `json:"topic"`
	Language         string        `json:"language"`
	ScriptInProgress bool          `json:"script_in_progress"`
	Segments         []segmentJSON `json:"segments"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) createSession(t *testing.T) sessionJSON {
	t.Helper()
	w, env := e.doJSON(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var s sessionJSON
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func multipartRequest(t *testing.T, path, instruction string, image []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if instruction != "" {
		require.NoError(t, mw.WriteField("instruction", instruction))
	}
	if image != nil {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="image"; filename="photo.png"`}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthAndLanguages(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w, resp := env.doJSON(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"provider":"fake"`)
	assert.Contains(t, string(resp.Data), `"active_sessions":0`)
	assert.Contains(t, string(resp.Data), `"requests_served":0`)

	env.createSession(t)
	_, resp = env.doJSON(t, http.MethodGet, "/api/health", nil)
	assert.Contains(t, string(resp.Data), `"active_sessions":1`)
	assert.Contains(t, string(resp.Data), `"requests_served":2`)

	w, resp = env.doJSON(t, http.MethodGet, "/api/languages", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var langs struct {
		Default   string            `json:"default"`
		Languages []models.Language `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &langs))
	assert.Equal(t, "en-US", langs.Default)
	assert.Len(t, langs.Languages, 2)
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w, resp := env.do(t, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", resp.RequestID)

	w, resp = env.doJSON(t, http.MethodGet, "/api/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	created := env.createSession(t)
	require.NotEmpty(t, created.ID)
	assert.Empty(t, created.Segments)

	w, resp := env.doJSON(t, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = env.doJSON(t, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.doJSON(t, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorSessionNotFound, resp.Error.Code)
}

func TestGenerateScriptEndpoint(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	created := env.createSession(t)

	w, resp := env.doJSON(t, http.MethodPost, "/api/sessions/"+created.ID+"/script", ScriptGenerationRequest{
		Topic:    "cats",
		Language: "en-US",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var s sessionJSON
	require.NoError(t, json.Unmarshal(resp.Data, &s))
	assert.Equal(t, "cats", s.Topic)
	assert.False(t, s.ScriptInProgress)
	require.Len(t, s.Segments, 2)

	hook := s.Segments[0]
	assert.Equal(t, "Hook", hook.Part)
	assert.Equal(t, "sleepy cat", hook.MemeIdea)
	assert.False(t, hook.Generating)
	assert.Empty(t, hook.Image)
	require.Len(t, hook.Citations, 1)
	assert.Equal(t, "16 hours", hook.Citations[0].MatchedText)

	source := models.SourceRef{Title: "Vet", URI: "https://vet.test"}
	assert.Equal(t, []services.TextSpan{
		{Text: "Cats sleep "},
		{Text: "16 hours", Source: &source},
		{Text: " a day"},
	}, hook.Highlights)

	assert.Empty(t, s.Segments[1].Citations)
	assert.Equal(t, []services.TextSpan{{Text: "Subscribe for more"}}, s.Segments[1].Highlights)
}

func TestGenerateScriptErrors(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	created := env.createSession(t)
	path := "/api/sessions/" + created.ID + "/script"

	w, resp := env.doJSON(t, http.MethodPost, path, ScriptGenerationRequest{Topic: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorValidation, resp.Error.Code)
	assert.Equal(t, "Please enter a topic for your script.", resp.Error.Message)

	w, resp = env.doJSON(t, http.MethodPost, path, ScriptGenerationRequest{Topic: "cats", Language: "de-DE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorLanguageUnsupported, resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w, resp = env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorBadRequest, resp.Error.Code)

	env.fake.Handler = nil
	env.fake.Response = &llm.ContentResponse{Text: "I'd rather not."}
	w, resp = env.doJSON(t, http.MethodPost, path, ScriptGenerationRequest{Topic: "cats"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "SCRIPT_GENERATION_FAILED", resp.Error.Code)
	assert.Equal(t, "Failed to generate script. Please try again.", resp.Error.Message)
	assert.Empty(t, resp.Error.Details)

	w, resp = env.doJSON(t, http.MethodPost, "/api/sessions/missing/script", ScriptGenerationRequest{Topic: "cats"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorSessionNotFound, resp.Error.Code)
}

func TestSegmentImageEndpoints(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	created := env.createSession(t)
	base := "/api/sessions/" + created.ID

	_, resp := env.doJSON(t, http.MethodPost, base+"/script", ScriptGenerationRequest{Topic: "cats"})
	var s sessionJSON
	require.NoError(t, json.Unmarshal(resp.Data, &s))
	require.Len(t, s.Segments, 2)

	w, resp := env.doJSON(t, http.MethodPost, base+"/segments/"+s.Segments[0].ID+"/image", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var seg segmentJSON
	require.NoError(t, json.Unmarshal(resp.Data, &seg))
	assert.Equal(t, "data:image/png;base64,AAAA", seg.Image)
	assert.False(t, seg.Generating)

	w, resp = env.doJSON(t, http.MethodPost, base+"/segments/"+s.Segments[1].ID+"/image", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "IMAGE_GENERATION_FAILED", resp.Error.Code)
	assert.Equal(t, "Failed to generate image. Please try again.", resp.Error.Message)

	w, resp = env.doJSON(t, http.MethodPost, base+"/segments/nope/image", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorSegmentNotFound, resp.Error.Code)

	w, resp = env.doJSON(t, http.MethodPost, base+"/images", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var batch struct {
		Results []services.SegmentImageResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &batch))
	require.Len(t, batch.Results, 1)
	assert.Equal(t, s.Segments[1].ID, batch.Results[0].SegmentID)
	assert.Equal(t, `Failed to generate image for "Call to Action". Please try again.`, batch.Results[0].Error)
}

func TestStatelessImageEndpoints(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w, resp := env.doJSON(t, http.MethodPost, "/api/images/generate", ImageGenerationRequest{Prompt: "surprised pikachu"})
	require.Equal(t, http.StatusOK, w.Code)
	var img ImageResult
	require.NoError(t, json.Unmarshal(resp.Data, &img))
	assert.Equal(t, "data:image/png;base64,AAAA", img.ImageURL)
	assert.Equal(t, "image/png", img.MIMEType)

	w, resp = env.doJSON(t, http.MethodPost, "/api/images/generate", ImageGenerationRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorValidation, resp.Error.Code)

	w, resp = env.do(t, multipartRequest(t, "/api/images/edit", "add a retro filter", pngHeader, "image/png"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, &img))
	assert.Equal(t, "data:image/png;base64,AAAA", img.ImageURL)

	reqs := env.fake.Requests()
	last := reqs[len(reqs)-1]
	require.Len(t, last.Parts, 2)
	assert.Equal(t, pngHeader, last.Parts[0].Inline.Data)
	assert.Equal(t, "add a retro filter", last.Parts[1].Text)

	w, resp = env.do(t, multipartRequest(t, "/api/images/edit", "add a retro filter", nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please upload an image and provide an editing instruction.", resp.Error.Message)

	w, resp = env.do(t, multipartRequest(t, "/api/images/edit", "", pngHeader, "image/png"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please upload an image and provide an editing instruction.", resp.Error.Message)
}

func TestEditImageFailureAndLimits(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{MaxUploadBytes: 64})
	created := env.createSession(t)

	env.fake.Handler = nil
	env.fake.Response = &llm.ContentResponse{Text: "cannot edit"}
	w, resp := env.do(t, multipartRequest(t, "/api/sessions/"+created.ID+"/edit", "make it blue", pngHeader, "image/png"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "IMAGE_EDITING_FAILED", resp.Error.Code)
	assert.Equal(t, "Failed to edit image. Please try again.", resp.Error.Message)

	stored, err := env.handler.Sessions.GetSession(created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ImageEdit)
	assert.Equal(t, "make it blue", stored.ImageEdit.Instruction)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 128)...)
	w, resp = env.do(t, multipartRequest(t, "/api/images/edit", "make it blue", big, "image/png"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, ErrorFileTooLarge, resp.Error.Code)
}

func TestMetricsEndpointAndUnknownRoute(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w, resp := env.doJSON(t, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorNotFound, resp.Error.Code)

	w, resp = env.doJSON(t, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "api_requests_total")
	assert.Equal(t, int64(2), env.metrics.GetCounterValue("api_requests_total"))
	assert.Equal(t, int64(1), env.metrics.GetCounterValue("api_errors_total"))
}

func TestFromErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"校验", apperrors.NewValidationError("Please enter a topic for your script.", nil), http.StatusBadRequest, ErrorValidation, "Please enter a topic for your script."},
		{"会话不存在", fmt.Errorf("load: %w", apperrors.ErrSessionNotFound), http.StatusNotFound, ErrorSessionNotFound, "session not found"},
		{"段落不存在", apperrors.ErrSegmentNotFound, http.StatusNotFound, ErrorSegmentNotFound, "segment not found"},
		{"冲突", apperrors.NewConflictError("image edit superseded", nil), http.StatusConflict, ErrorConflict, "image edit superseded"},
		{"生成失败", apperrors.NewGenerationError(apperrors.ErrImageEditing, errors.New("quota")), http.StatusBadGateway, "IMAGE_EDITING_FAILED", "Failed to edit image. Please try again."},
		{"上游错误", apperrors.WrapError(errors.New("dial tcp"), "init", apperrors.ErrorTypeUpstream), http.StatusInternalServerError, ErrorInternalError, msgInternal},
		{"普通错误", errors.New("boom"), http.StatusInternalServerError, ErrorInternalError, msgInternal},
	}

	rh := NewResponseHelper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			rh.FromError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.NotContains(t, w.Body.String(), "quota")
		})
	}
}
