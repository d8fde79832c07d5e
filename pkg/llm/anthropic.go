package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel は TEXT_PROVIDER=anthropic のときのデフォルトモデルです。
const DefaultAnthropicModel = "claude-3-5-sonnet-20241022"

// Anthropic は Messages API によるテキスト生成アダプタです。
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic は APIキーとモデル名から Anthropic アダプタを生成します。
func NewAnthropic(apiKey, model string) *Anthropic {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{client: &client, model: model, maxTokens: 8192}
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Images) > 0 {
		return "", ErrImagesUnsupported
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with a single JSON document only."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
