package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	libcfg "github.com/shouni/go-chapter-kit/pkg/config"

	"github.com/shouni/go-utils/envutil"
)

// ErrMissingCredentials は選択したプロバイダの API キーが設定されていない場合のエラーです。
var ErrMissingCredentials = errors.New("API キーが設定されていません")

// テキスト生成プロバイダ
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// デフォルト値の定義なのだ
const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultDatabasePath = "output/chapters.db"
	DefaultServerAddr   = ":8080"
	DefaultServiceName  = "go-chapter-kit"
)

// Config はアプリケーション全体の環境設定（APIキーや出力先）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	TextProvider    string
	TextModel       string // 空ならプロバイダのデフォルト

	GeminiModel      string
	VisionModel      string
	GeminiImageModel string
	StyleSuffix      string

	OutputDir    string
	DatabasePath string
	RosterFile   string

	RateInterval         time.Duration
	RequestTimeout       time.Duration
	ConsistencyThreshold int
	ReferenceAngles      []string

	OTelEndpoint string
	ServerAddr   string

	Options GenerateOptions
}

// GenerateOptions はコマンドラインから渡された実行時の設定なのだ。
type GenerateOptions struct {
	Prompt        string
	PromptFile    string
	Genre         string
	StoryID       string
	ChapterNumber int
	TotalChapters int
	PanelCount    int
	EntitiesFile  string // ユーザー作成の登場要素（JSON、ローカル or gs://...）
	PlanFile      string // 続きの章を生成するときの構成案（JSON）
	ReferenceOut  string // references コマンドの出力先
	Review        bool
	NoVerify      bool
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:     envutil.GetEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  envutil.GetEnv("ANTHROPIC_API_KEY", ""),
		TextProvider:     strings.ToLower(envutil.GetEnv("TEXT_PROVIDER", ProviderGemini)),
		TextModel:        envutil.GetEnv("TEXT_MODEL", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", libcfg.DefaultGeminiModel),
		VisionModel:      envutil.GetEnv("VISION_MODEL", libcfg.DefaultVisionModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", libcfg.DefaultImageModel),
		StyleSuffix:      envutil.GetEnv("STYLE_SUFFIX", libcfg.DefaultStyleSuffix),
		OutputDir:        envutil.GetEnv("OUTPUT_DIR", libcfg.DefaultOutputDir),
		DatabasePath:     envutil.GetEnv("DATABASE_PATH", DefaultDatabasePath),
		RosterFile:       envutil.GetEnv("ROSTER_FILE", ""),
		OTelEndpoint:     envutil.GetEnv("OTEL_EXPORTER_ENDPOINT", ""),
		ServerAddr:       envutil.GetEnv("SERVER_ADDR", DefaultServerAddr),

		RateInterval:         parseDuration(envutil.GetEnv("RATE_INTERVAL", ""), libcfg.DefaultRateInterval),
		RequestTimeout:       parseDuration(envutil.GetEnv("REQUEST_TIMEOUT", ""), libcfg.DefaultRequestTimeout),
		ConsistencyThreshold: parseInt(envutil.GetEnv("CONSISTENCY_THRESHOLD", ""), libcfg.DefaultThreshold),
		ReferenceAngles:      parseList(envutil.GetEnv("REFERENCE_ANGLES", strings.Join(libcfg.DefaultAngleViews, ","))),
	}
	return cfg
}

// Validate は実行前に必須項目を確認するのだ。
// 画像生成には常に Gemini を使うため GEMINI_API_KEY は必須なのだ。
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY は画像生成に必須なのだ", ErrMissingCredentials)
	}
	switch c.TextProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: TEXT_PROVIDER=openai には OPENAI_API_KEY が必要なのだ", ErrMissingCredentials)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: TEXT_PROVIDER=anthropic には ANTHROPIC_API_KEY が必要なのだ", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("未対応のテキストプロバイダなのだ: %q", c.TextProvider)
	}
	if c.ConsistencyThreshold < 0 || c.ConsistencyThreshold > 100 {
		return fmt.Errorf("CONSISTENCY_THRESHOLD は 0〜100 の範囲で指定してほしいのだ: %d", c.ConsistencyThreshold)
	}
	return nil
}

// Library はライブラリ層の設定に変換するのだ。
func (c *Config) Library() libcfg.Config {
	cfg := libcfg.NewConfig(c.GeminiAPIKey)
	cfg.GeminiModel = c.GeminiModel
	cfg.VisionModel = c.VisionModel
	cfg.ImageModel = c.GeminiImageModel
	cfg.StyleSuffix = c.StyleSuffix
	cfg.OutputDir = c.OutputDir
	cfg.RateInterval = c.RateInterval
	cfg.RequestTimeout = c.RequestTimeout
	cfg.ConsistencyThreshold = c.ConsistencyThreshold
	cfg.AngleViews = c.ReferenceAngles
	cfg.DisableVerification = c.Options.NoVerify
	return cfg
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// parseList はカンマ区切りの値を分割するのだ。空文字列は空のリスト（アングルなし）なのだ。
func parseList(raw string) []string {
	out := []string{}
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
