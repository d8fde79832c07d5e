package config

import (
	"errors"
	"testing"
	"time"

	libcfg "github.com/shouni/go-chapter-kit/pkg/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TEXT_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("RATE_INTERVAL", "3s")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("CONSISTENCY_THRESHOLD", "80")
	t.Setenv("REFERENCE_ANGLES", "side view, , three-quarter view")

	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if cfg.TextProvider != ProviderOpenAI {
		t.Errorf("期待値 %s, 実際の値 %s", ProviderOpenAI, cfg.TextProvider)
	}
	if cfg.RateInterval != 3*time.Second || cfg.RequestTimeout != libcfg.DefaultRequestTimeout {
		t.Errorf("期間の解析が想定外です: %v / %v", cfg.RateInterval, cfg.RequestTimeout)
	}
	if len(cfg.ReferenceAngles) != 2 || cfg.ReferenceAngles[1] != "three-quarter view" {
		t.Errorf("アングルの解析が想定外です: %v", cfg.ReferenceAngles)
	}

	lib := cfg.Library()
	if lib.GeminiAPIKey != "g-key" || lib.ConsistencyThreshold != 80 || lib.RateInterval != 3*time.Second {
		t.Errorf("ライブラリ設定への変換が想定外です: %+v", lib)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"Gemini のキーがない", Config{TextProvider: ProviderGemini}},
		{"OpenAI のキーがない", Config{GeminiAPIKey: "g", TextProvider: ProviderOpenAI}},
		{"Anthropic のキーがない", Config{GeminiAPIKey: "g", TextProvider: ProviderAnthropic}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("期待値 ErrMissingCredentials, 実際の値 %v", err)
			}
		})
	}

	t.Run("未対応のプロバイダ", func(t *testing.T) {
		cfg := Config{GeminiAPIKey: "g", TextProvider: "llama"}
		if err := cfg.Validate(); err == nil || errors.Is(err, ErrMissingCredentials) {
			t.Errorf("想定外のエラーです: %v", err)
		}
	})
}
