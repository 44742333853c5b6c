// internal/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultScriptModel 脚本生成模型（支持搜索增强）
	DefaultScriptModel = "gemini-2.5-flash"
	// DefaultImageModel 图像生成与编辑模型
	DefaultImageModel = "gemini-2.5-flash-image"

	defaultMaxUploadBytes = 10 << 20
)

// ErrMissingAPIKey 缺少后端凭证时启动即失败，不提供降级模式
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set")

// Config 存储应用配置
type Config struct {
	Port      string
	StaticDir string
	LogDir    string
	DebugMode bool

	// LLM相关配置
	LLMProvider   string
	GeminiAPIKey  string
	GeminiBaseURL string
	ScriptModel   string
	ImageModel    string

	// 脚本生成温度，0 使用后端默认值
	ScriptTemperature float32

	// 会话与上传
	SessionTTL     time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		StaticDir:         getEnv("STATIC_DIR", "static"),
		LogDir:            getEnv("LOG_DIR", "logs"),
		DebugMode:         getEnvBool("DEBUG_MODE", false),
		LLMProvider:       getEnv("LLM_PROVIDER", "google"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		ScriptModel:       getEnv("SCRIPT_MODEL", DefaultScriptModel),
		ImageModel:        getEnv("IMAGE_MODEL", DefaultImageModel),
		ScriptTemperature: getEnvFloat32("SCRIPT_TEMPERATURE", 0),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*time.Minute),
		MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
	}

	if config.GeminiAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return config, nil
}

// LLMConfig 返回传给 llm.Provider.Initialize 的配置
func (c *Config) LLMConfig() map[string]string {
	cfg := map[string]string{
		"api_key":       c.GeminiAPIKey,
		"default_model": c.ScriptModel,
	}
	if c.GeminiBaseURL != "" {
		cfg["base_url"] = c.GeminiBaseURL
	}
	return cfg
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration 解析形如 "30m" 的时长，非法值回落到默认值
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getEnvFloat32 取值范围 [0, 2]，超出或非法时回落到默认值
func getEnvFloat32(key string, defaultValue float32) float32 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 32)
	if err != nil || f < 0 || f > 2 {
		return defaultValue
	}
	return float32(f)
}

// getEnvList 逗号分隔的列表
func getEnvList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
