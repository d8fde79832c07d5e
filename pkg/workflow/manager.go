// Package workflow は章生成キットの部品を組み立て、パイプラインを構築します。
package workflow

import (
	"context"
	"fmt"

	"github.com/shouni/go-chapter-kit/pkg/agents"
	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/config"
	"github.com/shouni/go-chapter-kit/pkg/generator"
	"github.com/shouni/go-chapter-kit/pkg/llm"
	"github.com/shouni/go-chapter-kit/pkg/pipeline"
	"github.com/shouni/go-chapter-kit/pkg/prompts"
	"github.com/shouni/go-chapter-kit/pkg/publisher"
	"github.com/shouni/go-chapter-kit/pkg/reference"
	"github.com/shouni/go-chapter-kit/pkg/verify"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/time/rate"
)

// ManagerArgs は Manager の初期化に必要な依存関係です。
type ManagerArgs struct {
	Config config.Config

	// TextModel は物語・パネル分割・抽出に使うテキスト生成モデルです（必須）。
	TextModel llm.Generator
	// VisionModel は整合性の検証に使うモデルです。nil の場合は TextModel を使います。
	VisionModel llm.Generator

	// Synthesizer を指定した場合、画像生成エンジンは構築されません。
	Synthesizer generator.ImageSynthesizer
	// ImageClient は画像生成用の gemini クライアントです。nil の場合は Config.GeminiAPIKey から作成します。
	ImageClient gemini.GenerativeModel
	HTTPClient  httpkit.ClientInterface

	Reader remoteio.InputReader
	Writer remoteio.OutputWriter

	Store   pipeline.ChapterStore
	Rosters agents.Rosters
	Prompts prompts.PromptBuilder
}

// Manager は、章生成の各工程を担う部品を構築・管理します。
type Manager struct {
	cfg     config.Config
	text    llm.Generator
	vision  llm.Generator
	prompts prompts.PromptBuilder
	rosters agents.Rosters
	synth   generator.ImageSynthesizer
	loader  *asset.Loader
	limiter *rate.Limiter
	writer  remoteio.OutputWriter
	store   pipeline.ChapterStore
}

var _ Workflow = (*Manager)(nil)

// New は、設定と依存関係を基に新しい Manager を初期化します。
func New(ctx context.Context, args ManagerArgs) (*Manager, error) {
	if args.TextModel == nil {
		return nil, fmt.Errorf("TextModel は必須です")
	}
	if args.Reader == nil {
		return nil, fmt.Errorf("InputReader は必須です")
	}
	if args.Writer == nil {
		return nil, fmt.Errorf("OutputWriter は必須です")
	}

	cfg, err := args.Config.Normalize()
	if err != nil {
		return nil, err
	}

	pb, err := initializePrompts(args.Prompts)
	if err != nil {
		return nil, err
	}

	rosters := args.Rosters
	if rosters == nil {
		if rosters, err = agents.DefaultRosters(); err != nil {
			return nil, fmt.Errorf("ペルソナ名簿の読み込みに失敗しました: %w", err)
		}
	}

	synth := args.Synthesizer
	if synth == nil {
		if args.HTTPClient == nil {
			return nil, fmt.Errorf("httpClient は必須です")
		}
		aiClient := args.ImageClient
		if aiClient == nil {
			if aiClient, err = initializeAIClient(ctx, cfg.GeminiAPIKey); err != nil {
				return nil, err
			}
		}
		if synth, err = buildSynthesizer(cfg, args.HTTPClient, aiClient, args.Reader, args.Writer); err != nil {
			return nil, err
		}
	}

	vision := args.VisionModel
	if vision == nil {
		vision = args.TextModel
	}

	return &Manager{
		cfg:     cfg,
		text:    llm.WithTimeout(args.TextModel, cfg.RequestTimeout),
		vision:  llm.WithTimeout(vision, cfg.RequestTimeout),
		prompts: pb,
		rosters: rosters,
		synth:   synth,
		loader:  asset.NewLoader(args.Reader),
		limiter: newLimiter(cfg),
		writer:  args.Writer,
		store:   args.Store,
	}, nil
}

// initializePrompts は PromptBuilder を初期化します。
// 引数として既存のビルダーが渡された場合はそれを返し、nil の場合は新規作成します。
func initializePrompts(pb prompts.PromptBuilder) (prompts.PromptBuilder, error) {
	if pb != nil {
		return pb, nil
	}
	b, err := prompts.NewTextPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
	}
	return b, nil
}

// Config は正規化済みの設定を返します。
func (m *Manager) Config() config.Config {
	return m.cfg
}

// BuildReferenceRunner は設定画の生成を担当する部品を作成します。
func (m *Manager) BuildReferenceRunner() ReferenceRunner {
	return reference.NewGenerator(m.synth, m.cfg.StyleSuffix, m.limiter, m.cfg.Concurrency, m.cfg.AngleViews)
}

// BuildPanelRenderer はパネル画像の生成を担当する部品を作成します。
// 検証が有効な場合は、整合性の検証と1回までの再生成を行う Refiner を組み込みます。
func (m *Manager) BuildPanelRenderer() *generator.PanelRenderer {
	renderer := generator.NewPanelRenderer(m.synth, m.cfg.StyleSuffix, m.limiter, m.cfg.Concurrency)
	if m.cfg.DisableVerification {
		return renderer
	}
	checker := verify.NewVerifier(m.vision, m.prompts, m.loader)
	return renderer.WithReviewer(verify.NewRefiner(checker, renderer, m.cfg.ConsistencyThreshold))
}

// BuildPublisher は章の書き出しを担当する部品を作成します。
func (m *Manager) BuildPublisher() *publisher.ChapterPublisher {
	return publisher.NewChapterPublisher(m.writer, m.cfg.OutputDir)
}

// BuildOrchestrator は1回の実行分のパイプラインを構築します。
func (m *Manager) BuildOrchestrator(observer pipeline.Observer) (*pipeline.Orchestrator, error) {
	return pipeline.New(pipeline.Deps{
		Engine:     agents.NewEngine(m.text, m.prompts, m.cfg.Concurrency),
		Rosters:    m.rosters,
		Prompts:    m.prompts,
		References: m.BuildReferenceRunner(),
		Renderer:   m.BuildPanelRenderer(),
		Store:      m.store,
		Publisher:  m.BuildPublisher(),
		Observer:   observer,
	}, pipeline.WithMaxReferences(m.cfg.MaxReferences))
}
