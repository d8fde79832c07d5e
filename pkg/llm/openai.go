package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel は TEXT_PROVIDER=openai のときのデフォルトモデルです。
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI は Chat Completions API によるテキスト生成アダプタです。
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI は APIキーとモデル名から OpenAI アダプタを生成します。
func NewOpenAI(apiKey, model string) *OpenAI {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: &client, model: model, maxTokens: 8192}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Images) > 0 {
		return "", ErrImagesUnsupported
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with a single JSON document only."
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               openai.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(o.maxTokens),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
