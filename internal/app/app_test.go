package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Corphon/ShortsStudio/internal/config"
	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/llm/llmtest"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		LLMProvider:    "google",
		GeminiAPIKey:   "test-key",
		ScriptModel:    config.DefaultScriptModel,
		ImageModel:     config.DefaultImageModel,
		SessionTTL:     time.Minute,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"*"},
	}
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerFromZap(zap.NewNop())
}

func TestNewWithProviderServesAPI(t *testing.T) {
	fake := &llmtest.FakeProvider{Response: llmtest.ImageResponse("image/png", []byte{0, 0, 0})}
	a, err := NewWithProvider(testConfig(), quietLogger(), fake)
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Provider string `json:"provider"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "fake", body.Data.Provider)

	assert.Equal(t, ":0", a.server.Addr)

	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCloseIsIdempotent(t *testing.T) {
	fake := &llmtest.FakeProvider{}
	a, err := NewWithProvider(testConfig(), quietLogger(), fake)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, fake.Closed())
}

func TestServeAndShutdown(t *testing.T) {
	fake := &llmtest.FakeProvider{}
	a, err := NewWithProvider(testConfig(), quietLogger(), fake)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.ServeListener(l) }()

	client := &http.Client{Timeout: 5 * time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + l.Addr().String() + "/api/languages")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, <-done)
	assert.True(t, fake.Closed())
}

func TestBuildProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "does-not-exist"
	_, err := BuildProvider(cfg)
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeUpstream, appErr.Type)

	_, err = New(cfg, quietLogger())
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}
