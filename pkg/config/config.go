// Package config は章生成キットの各部品を動作させるための基本設定です。
package config

import (
	"fmt"
	"time"
)

// デフォルト値の定義
const (
	DefaultGeminiModel     = "gemini-3-flash-preview"
	DefaultVisionModel     = "gemini-3-flash-preview"
	DefaultImageModel      = "gemini-3-pro-image-preview"
	DefaultRateInterval    = 10 * time.Second
	DefaultRateBurst       = 2
	DefaultRequestTimeout  = 3 * time.Minute
	DefaultConcurrency     = 4
	DefaultThreshold       = 75
	DefaultMaxReferences   = 8
	DefaultPanelCount      = 6
	DefaultOutputDir       = "output"
	DefaultStyleSuffix     = "Cinematic illustrated novel style, detailed ink linework, painterly coloring, dramatic lighting, consistent character design, high resolution"
)

// DefaultGeminiTemperature は画像生成クライアントの温度です。
const DefaultGeminiTemperature = float32(0.2)

// DefaultAngleViews は主人公に追加で生成するアングルです。
var DefaultAngleViews = []string{"side view", "back view"}

// Config は章生成キットの各部品を動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings ---
	GeminiAPIKey string
	GeminiModel  string // テキスト生成
	VisionModel  string // 整合性の検証
	ImageModel   string // パネル・設定画の生成

	// --- Generation Settings ---
	StyleSuffix  string
	RateInterval time.Duration
	RateBurst    int
	Concurrency  int
	PanelCount   int

	// --- Consistency Settings ---
	ConsistencyThreshold int
	MaxReferences        int
	AngleViews           []string
	// DisableVerification は整合性の検証と再生成を行わないようにします。
	DisableVerification bool

	// --- Storage & Output Settings ---
	OutputDir string

	// --- Timeout ---
	RequestTimeout time.Duration
}

// NewConfig はデフォルト値で初期化された Config を作成し、API キーをセットして返します。
func NewConfig(apiKey string) Config {
	cfg := DefaultConfig()
	cfg.GeminiAPIKey = apiKey
	return cfg
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		GeminiModel:          DefaultGeminiModel,
		VisionModel:          DefaultVisionModel,
		ImageModel:           DefaultImageModel,
		StyleSuffix:          DefaultStyleSuffix,
		RateInterval:         DefaultRateInterval,
		RateBurst:            DefaultRateBurst,
		Concurrency:          DefaultConcurrency,
		PanelCount:           DefaultPanelCount,
		ConsistencyThreshold: DefaultThreshold,
		MaxReferences:        DefaultMaxReferences,
		AngleViews:           append([]string(nil), DefaultAngleViews...),
		OutputDir:            DefaultOutputDir,
		RequestTimeout:       DefaultRequestTimeout,
	}
}

// Normalize はゼロ値の項目をデフォルト値で補い、範囲外の値を検出します。
func (c Config) Normalize() (Config, error) {
	d := DefaultConfig()
	if c.GeminiModel == "" {
		c.GeminiModel = d.GeminiModel
	}
	if c.VisionModel == "" {
		c.VisionModel = c.GeminiModel
	}
	if c.ImageModel == "" {
		c.ImageModel = d.ImageModel
	}
	if c.StyleSuffix == "" {
		c.StyleSuffix = d.StyleSuffix
	}
	if c.RateInterval <= 0 {
		c.RateInterval = d.RateInterval
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.PanelCount <= 0 {
		c.PanelCount = d.PanelCount
	}
	if c.ConsistencyThreshold == 0 {
		c.ConsistencyThreshold = d.ConsistencyThreshold
	}
	if c.ConsistencyThreshold < 0 || c.ConsistencyThreshold > 100 {
		return c, fmt.Errorf("整合性の閾値は 0〜100 の範囲で指定してください: %d", c.ConsistencyThreshold)
	}
	if c.MaxReferences == 0 {
		c.MaxReferences = d.MaxReferences
	}
	if c.AngleViews == nil {
		c.AngleViews = d.AngleViews
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	return c, nil
}
