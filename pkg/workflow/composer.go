package workflow

import (
	"context"
	"fmt"

	"github.com/shouni/go-chapter-kit/pkg/config"
	"github.com/shouni/go-chapter-kit/pkg/generator"

	"github.com/patrickmn/go-cache"
	imagekit "github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// buildSynthesizer は画像処理コアを組み立て、呼び出しごとのタイムアウト付きの ImageSynthesizer を返します。
func buildSynthesizer(
	cfg config.Config,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) (generator.ImageSynthesizer, error) {
	core, err := initializeCore(reader, httpClient, aiClient)
	if err != nil {
		return nil, fmt.Errorf("画像生成エンジンの初期化に失敗しました: %w", err)
	}
	imageGenerator, err := initializeImageGenerator(cfg.ImageModel, core)
	if err != nil {
		return nil, fmt.Errorf("ImageGeneratorの初期化に失敗しました: %w", err)
	}

	synth := generator.NewKitSynthesizer(imageGenerator, core, writer, cfg.OutputDir)
	return generator.WithTimeout(synth, cfg.RequestTimeout), nil
}

// initializeAIClient は画像生成に使う gemini クライアントを初期化します。
func initializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(config.DefaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// initializeImageGenerator は、画像キャッシュを含む ImageGenerator を初期化します。
func initializeImageGenerator(model string, core *imagekit.GeminiImageCore) (imagekit.ImageGenerator, error) {
	return imagekit.NewGeminiGenerator(
		model,
		core,
	)
}

// initializeCore 提供された依存関係で構成された GeminiImageCore インスタンスを初期化して返します。
func initializeCore(reader remoteio.InputReader, httpClient httpkit.ClientInterface, aiClient gemini.GenerativeModel) (*imagekit.GeminiImageCore, error) {
	imgCache := cache.New(defaultCacheExpiration, cacheCleanupInterval)
	core, err := imagekit.NewGeminiImageCore(
		aiClient,
		reader,
		httpClient,
		imgCache,
		defaultTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCore の初期化に失敗しました: %w", err)
	}

	return core, nil
}

// newLimiter は設定画とパネルの生成で共有するレートリミッターを作成します。
func newLimiter(cfg config.Config) *rate.Limiter {
	return rate.NewLimiter(rate.Every(cfg.RateInterval), cfg.RateBurst)
}
